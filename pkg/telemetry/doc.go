// Package telemetry provides observability instrumentation for deplist.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// The resolver takes the pieces directly:
//
//	list := engine.New(db, env,
//	    engine.WithLogger(tel.Logger.ForResolution(id, targets)),
//	    engine.WithMetrics(tel.Metrics),
//	    engine.WithTracer(tel.Tracer.Tracer()),
//	)
//
// # Logging
//
// Logs go to stderr by default so that merge lists printed on stdout stay
// machine readable. Libraries take a zerolog.Logger; Component and
// WithRepository derive tagged children:
//
//	logger := tel.Logger.Component("repository").WithRepository("gentoo")
//	logger.Zerolog().Info().Msg("loaded")
//
// # Tracing
//
// Tracing is off by default. The stdout exporter pretty-prints spans on
// stderr; the otlp exporter sends them over gRPC to a collector. The
// resolver opens one span per Add call.
//
// # Metrics
//
// Metrics implements engine.MetricsRecorder:
//
//   - resolutions_total and resolution_duration_seconds by outcome
//   - resolution_errors_total by error kind
//   - rollbacks_total by scope
//   - merge_entries_added_total
//   - resolution_stack_depth
//   - repository_packages and repository_reloads_total by repository
//
// When a listen address is configured, StartMetricsServer exposes them over
// HTTP until its context is cancelled.
package telemetry
