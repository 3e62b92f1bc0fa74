package analysis

import (
	"errors"
	"fmt"

	"github.com/windboard/windboard/pkg/columns"
	"github.com/windboard/windboard/pkg/engine"
)

// MemoryErrorNote is the debug note of a response that fell back because the
// estimator ran out of resources.
const MemoryErrorNote = "MemoryError: Server has insufficient RAM for full analysis"

// Diagnostic kinds, used as metric labels.
const (
	KindInferenceGap = "inference_gap"
	KindParseFailure = "parse_failure"
	KindSliceFailure = "slice_failure"
)

// InferenceGap reports that no column could fill role, so View was skipped.
type InferenceGap struct {
	Role columns.Role
	View string
}

func (e *InferenceGap) Error() string {
	return fmt.Sprintf("no %s column found, %s skipped", e.Role, e.View)
}

// ParseFailure reports rows dropped because their timestamp could not be
// parsed.
type ParseFailure struct {
	Source  string
	Dropped int
	Total   int
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("dropped %d of %d rows with unparsable timestamps from %s", e.Dropped, e.Total, e.Source)
}

// SliceFailure reports a turbine that was dropped from the comparison.
type SliceFailure struct {
	TurbineID string
	Err       error
}

func (e *SliceFailure) Error() string {
	return fmt.Sprintf("turbine %s skipped: %v", e.TurbineID, e.Err)
}

func (e *SliceFailure) Unwrap() error {
	return e.Err
}

// Stages at which the real analysis can fail.
const (
	StagePrecondition = "precondition"
	StageLoad         = "load"
	StageEstimate     = "estimate"
	StagePanic        = "panic"
)

// EngineError is a failure of the real analysis path. Any EngineError causes a
// synthetic response.
type EngineError struct {
	Stage string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("analysis %s failed: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// diagnosticKind returns the metric label for a non-fatal diagnostic.
func diagnosticKind(err error) string {
	var (
		gap   *InferenceGap
		parse *ParseFailure
		slice *SliceFailure
	)
	switch {
	case errors.As(err, &gap):
		return KindInferenceGap
	case errors.As(err, &parse):
		return KindParseFailure
	case errors.As(err, &slice):
		return KindSliceFailure
	default:
		return ""
	}
}

// DebugNote returns the note attached to the synthetic response that replaces
// a failed analysis.
func DebugNote(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, engine.ErrResourceExhausted) {
		return MemoryErrorNote
	}
	var ee *EngineError
	if errors.As(err, &ee) && ee.Err != nil {
		return ee.Err.Error()
	}
	return err.Error()
}
