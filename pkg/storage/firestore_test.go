package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windboard/windboard/pkg/types"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("EmptyPlantID", func(t *testing.T) {
		_, err := f.GetLatestResult(ctx, "")
		assert.ErrorContains(t, err, "plantID cannot be empty")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := f.GetLatestResult(ctx, "no-such-plant")
		assert.ErrorIs(t, err, ErrResultNotFound)
	})

	t.Run("Latest", func(t *testing.T) {
		first := types.AnalysisResponse{Status: types.StatusSuccess, Mode: types.ModePrecomputed, AEPGWh: 14.1}
		second := types.AnalysisResponse{Status: types.StatusSuccess, Mode: types.ModePrecomputed, AEPGWh: 14.6}
		require.NoError(t, f.SaveResult(ctx, "la-haute-borne", first))
		require.NoError(t, f.SaveResult(ctx, "la-haute-borne", second))

		b, err := f.GetLatestResult(ctx, "la-haute-borne")
		require.NoError(t, err)
		var got types.AnalysisResponse
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, 14.6, got.AEPGWh)
	})
}
