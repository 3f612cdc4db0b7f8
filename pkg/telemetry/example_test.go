package telemetry_test

import (
	"context"
	"fmt"
	"os"

	"github.com/deplist/deplist/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.Writer = os.Stdout
	cfg.Logging.Level = "warn"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Below the configured level, so nothing is printed.
	telemetry.FromContext(ctx).Zerolog().Info().Msg("application started")

	fmt.Println(tel.Metrics.Registry() != nil)
	// Output: true
}

// Example_instrumentedOperation wraps a repository load in a span.
func Example_instrumentedOperation() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	op := telemetry.StartOperation(ctx, "repository.load",
		telemetry.AttrRepository.String("gentoo"),
	)
	op.SetResult(42, "")
	op.End(nil)

	fmt.Println("done")
	// Output: done
}
