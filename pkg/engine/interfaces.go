package engine

import (
	"context"
	"time"

	"github.com/deplist/deplist/pkg/depspec"
)

// Parser turns dependency strings into specification trees.
// depspec.Parser implements it.
type Parser interface {
	// Parse parses text in the given class. Blank text yields an empty AllOf.
	Parse(text string, class depspec.Class) (*depspec.AllOf, error)
}

// PackageDatabase answers package queries.
type PackageDatabase interface {
	// Query returns every candidate matching atom, in ascending precedence
	// order. The resolver prefers the last usable candidate.
	Query(ctx context.Context, atom *depspec.PackageAtom) ([]Candidate, error)

	// FetchMetadata returns the metadata of one package version.
	FetchMetadata(ctx context.Context, id PackageID) (*VersionMetadata, error)
}

// Environment answers USE flag and masking questions.
type Environment interface {
	// QueryUse reports whether flag is enabled. pkg is the package whose
	// dependencies are being evaluated, or nil at the top level.
	QueryUse(flag string, pkg *PackageID) bool

	// MaskReasons returns why a candidate may not be used. An empty result
	// means the candidate is usable.
	MaskReasons(ctx context.Context, id PackageID, metadata *VersionMetadata) (MaskReasons, error)
}

// MetricsRecorder receives resolution metrics. telemetry.Metrics
// implements it.
type MetricsRecorder interface {
	// RecordResolution records one top-level Add.
	RecordResolution(outcome string, duration time.Duration, added int)

	// RecordResolutionError records a failed Add by error kind.
	RecordResolutionError(kind string)

	// RecordRollback records a discarded resolution attempt.
	RecordRollback(scope string)

	// ObserveStackDepth records the deepest recursion reached by an Add.
	ObserveStackDepth(depth int)
}

type nopMetrics struct{}

func (nopMetrics) RecordResolution(string, time.Duration, int) {}
func (nopMetrics) RecordResolutionError(string)                {}
func (nopMetrics) RecordRollback(string)                       {}
func (nopMetrics) ObserveStackDepth(int)                       {}
