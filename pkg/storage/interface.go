package storage

import (
	"context"

	"github.com/windboard/windboard/pkg/types"
)

// Database persists pre-computed analysis results.
type Database interface {
	// SaveResult stores result as the latest result of plantID.
	SaveResult(ctx context.Context, plantID string, result types.AnalysisResponse) error
	// GetLatestResult returns the JSON of the latest stored result of plantID
	// exactly as it was saved. It returns ErrResultNotFound when there is none.
	GetLatestResult(ctx context.Context, plantID string) ([]byte, error)

	// Lifecycle
	Close() error
}
