package telemetry

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
)

// Config is the telemetry section of the deplist configuration file.
type Config struct {
	// ServiceName and ServiceVersion identify the process in traces. The CLI
	// sets ServiceVersion to its build version.
	ServiceName    string `yaml:"service_name" json:"service_name"`
	ServiceVersion string `yaml:"service_version" json:"service_version"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // trace, debug, info, warn, error or fatal
	Format string `yaml:"format" json:"format"` // console or json

	// Output is stderr, stdout or a file path. Merge lists are printed on
	// stdout, so stdout logging only suits the json output format.
	Output string `yaml:"output" json:"output"`

	EnableCaller bool   `yaml:"enable_caller" json:"enable_caller"`
	TimeFormat   string `yaml:"time_format" json:"time_format"` // rfc3339, unix or unixms

	// Writer overrides Output. Tests use it to capture log lines.
	Writer io.Writer `yaml:"-" json:"-"`
}

// TracingConfig configures span export. Each resolve command produces one
// span per Add call below its command span.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" json:"exporter"` // otlp, stdout or none

	// OTLP gRPC collector settings.
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Insecure bool              `yaml:"insecure" json:"insecure"`
	Headers  map[string]string `yaml:"headers" json:"headers"`

	SamplingRate       float64       `yaml:"sampling_rate" json:"sampling_rate"`
	MaxExportBatchSize int           `yaml:"max_export_batch_size" json:"max_export_batch_size"`
	ExportTimeout      time.Duration `yaml:"export_timeout" json:"export_timeout"`
}

// MetricsConfig configures the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ListenAddress serves Path over HTTP during resolve --watch. Empty
	// means metrics are collected but not served.
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
	Path          string `yaml:"path" json:"path"`

	Namespace string `yaml:"namespace" json:"namespace"`

	// DefaultHistogramBuckets are the resolution latency buckets in seconds.
	DefaultHistogramBuckets []float64 `yaml:"buckets" json:"buckets"`
}

var (
	logLevels     = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	logFormats    = []string{"console", "json"}
	traceExporter = []string{"otlp", "stdout", "none"}
)

// DefaultConfig returns console logging at info on stderr, tracing off and
// metrics collected but not served.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "deplist",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "stdout",
			Insecure:           true,
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "deplist",
			// Most resolutions finish in well under a millisecond.
			DefaultHistogramBuckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
			},
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format))
	}
	if c.Tracing.Enabled {
		if !slices.Contains(traceExporter, c.Tracing.Exporter) {
			errs = append(errs, fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter))
		}
		if c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("otlp exporter requires an endpoint"))
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0 and 1, got: %g", c.Tracing.SamplingRate))
	}
	return errors.Join(errs...)
}
