package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// RdependPost controls when RDEPEND is expanded relative to the entry.
type RdependPost int

const (
	// RdependAsNeeded expands RDEPEND eagerly and falls back to the
	// post-merge sweep when that would close a cycle.
	RdependAsNeeded RdependPost = iota

	// RdependAlways defers every RDEPEND expansion to the sweep.
	RdependAlways

	// RdependNever expands RDEPEND eagerly and treats a cycle as fatal.
	RdependNever
)

func (r RdependPost) String() string {
	switch r {
	case RdependAsNeeded:
		return "as_needed"
	case RdependAlways:
		return "always"
	case RdependNever:
		return "never"
	default:
		return fmt.Sprintf("RdependPost(%d)", int(r))
	}
}

// ParseRdependPost parses "always", "as_needed" or "never".
func ParseRdependPost(s string) (RdependPost, error) {
	switch s {
	case "as_needed", "as-needed", "":
		return RdependAsNeeded, nil
	case "always":
		return RdependAlways, nil
	case "never":
		return RdependNever, nil
	}
	return RdependAsNeeded, fmt.Errorf("invalid rdepend-post value %q (want always, as_needed or never)", s)
}

// DefaultMaxStackDepth is the default recursion ceiling.
const DefaultMaxStackDepth = 100

// Options holds the behavioural toggles of a DepList.
type Options struct {
	// RdependPost selects when RDEPEND is expanded.
	RdependPost RdependPost

	// RecursiveDeps enables transitive expansion. When false only the atoms
	// named in the added spec are resolved.
	RecursiveDeps bool

	// DropCircular suppresses every cycle back to an entry mid-expansion.
	DropCircular bool

	// DropSelfCircular suppresses cycles whose target is the entry being
	// expanded.
	DropSelfCircular bool

	// DropAll skips all dependency expansion.
	DropAll bool

	// IgnoreInstalled excludes installed candidates.
	IgnoreInstalled bool

	// MaxStackDepth is the recursion ceiling.
	MaxStackDepth int

	// CycleTolerant lists packages whose self-cycles are always tolerated,
	// typically bootstrap tools.
	CycleTolerant []string
}

// DefaultOptions returns the default toggles.
func DefaultOptions() Options {
	return Options{
		RdependPost:   RdependAsNeeded,
		RecursiveDeps: true,
		MaxStackDepth: DefaultMaxStackDepth,
		CycleTolerant: []string{"sys-devel/patch"},
	}
}

// Option configures a DepList.
type Option func(*DepList)

// WithOptions replaces all toggles.
func WithOptions(opts Options) Option {
	return func(d *DepList) {
		d.opts = opts
		d.opts.CycleTolerant = append([]string(nil), opts.CycleTolerant...)
	}
}

// WithParser sets the parser used for metadata dependency strings.
func WithParser(p Parser) Option {
	return func(d *DepList) {
		d.parser = p
	}
}

// WithLogger sets the logger. QA notices are logged at warn level.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *DepList) {
		d.logger = logger.With().Str("component", "deplist").Logger()
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *DepList) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracer sets the tracer used for Add spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *DepList) {
		if t != nil {
			d.tracer = t
		}
	}
}

// Options returns a copy of the current toggles.
func (d *DepList) Options() Options {
	out := d.opts
	out.CycleTolerant = append([]string(nil), d.opts.CycleTolerant...)
	return out
}

// SetRdependPost sets when RDEPEND is expanded.
func (d *DepList) SetRdependPost(v RdependPost) { d.opts.RdependPost = v }

// SetRecursiveDeps enables or disables transitive expansion.
func (d *DepList) SetRecursiveDeps(v bool) { d.opts.RecursiveDeps = v }

// SetDropCircular enables or disables suppression of all cycles.
func (d *DepList) SetDropCircular(v bool) { d.opts.DropCircular = v }

// SetDropSelfCircular enables or disables suppression of self cycles.
func (d *DepList) SetDropSelfCircular(v bool) { d.opts.DropSelfCircular = v }

// SetDropAll enables or disables skipping of all dependency expansion.
func (d *DepList) SetDropAll(v bool) { d.opts.DropAll = v }

// SetIgnoreInstalled enables or disables exclusion of installed candidates.
func (d *DepList) SetIgnoreInstalled(v bool) { d.opts.IgnoreInstalled = v }

// SetMaxStackDepth sets the recursion ceiling.
func (d *DepList) SetMaxStackDepth(v int) { d.opts.MaxStackDepth = v }

// SetCycleTolerant replaces the list of cycle-tolerant packages. An empty
// list makes every self-cycle subject to DropSelfCircular.
func (d *DepList) SetCycleTolerant(names []string) {
	d.opts.CycleTolerant = append([]string(nil), names...)
}

func (d *DepList) cycleTolerant(name string) bool {
	for _, n := range d.opts.CycleTolerant {
		if n == name {
			return true
		}
	}
	return false
}
