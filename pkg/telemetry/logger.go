package telemetry

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process logger. Library packages take the zerolog.Logger it
// carries; Logger adds component scoping, per-resolution fields and
// ownership of the log file.
type Logger struct {
	zlog zerolog.Logger
	file *os.File
}

// NewLogger creates a logger writing to cfg.Writer, or to the stream or file
// named by cfg.Output.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	l := &Logger{}

	out := cfg.Writer
	if out == nil {
		w, file, err := openOutput(cfg.Output)
		if err != nil {
			return nil, err
		}
		out, l.file = w, file
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.Writer != nil || l.file != nil,
		}
	}

	zerolog.TimeFieldFormat = timeFieldFormat(cfg.TimeFormat)

	zctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	l.zlog = zctx.Logger()
	return l, nil
}

func openOutput(output string) (io.Writer, *os.File, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}

func timeFieldFormat(format string) string {
	switch format {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	default:
		return time.RFC3339
	}
}

// Zerolog returns the underlying logger. Libraries that take a
// zerolog.Logger by value get a copy with *l.Zerolog().
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return l.with(l.zlog.With().Str("component", name))
}

// WithRepository returns a child logger tagged with a repository name.
func (l *Logger) WithRepository(name string) *Logger {
	return l.with(l.zlog.With().Str("repository", name))
}

// ForResolution returns the logger handed to one resolver run. Every line
// carries the resolution ID so history records and logs can be joined.
func (l *Logger) ForResolution(id string, targets []string) zerolog.Logger {
	return l.zlog.With().
		Str("resolution_id", id).
		Str("targets", strings.Join(targets, " ")).
		Logger()
}

func (l *Logger) with(zctx zerolog.Context) *Logger {
	return &Logger{zlog: zctx.Logger(), file: l.file}
}

// WithContext attaches the logger to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or a disabled logger.
func FromContext(ctx context.Context) *Logger {
	return &Logger{zlog: *zerolog.Ctx(ctx)}
}

// Close closes the log file, if the logger opened one.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to
// info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
