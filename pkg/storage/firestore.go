package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider stores pre-computed results in Google Cloud Firestore
// under plants/{plantID}/results. Each result is a JSON string so it can be
// served back byte for byte.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured. An empty project
// id is detected from the environment.
func (f *FirestoreProvider) Validate() error {
	return nil
}

// Init creates the Firestore client. It must be called before any other
// method.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) results(plantID string) (*firestore.CollectionRef, error) {
	if plantID == "" {
		return nil, errors.New("plantID cannot be empty")
	}
	return f.client.Collection("plants").Doc(plantID).Collection("results"), nil
}

// SaveResult adds result as a new document. The document id is the creation
// time so results sort chronologically.
func (f *FirestoreProvider) SaveResult(ctx context.Context, plantID string, result types.AnalysisResponse) error {
	coll, err := f.results(plantID)
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	now := time.Now().UTC()
	_, err = coll.Doc(now.Format(time.RFC3339Nano)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"mode":      string(result.Mode),
		"createdAt": now,
	})
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetLatestResult returns the most recently saved result of plantID.
func (f *FirestoreProvider) GetLatestResult(ctx context.Context, plantID string) ([]byte, error) {
	coll, err := f.results(plantID)
	if err != nil {
		return nil, err
	}
	iter := coll.
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done || status.Code(err) == codes.NotFound {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result doc: %w", err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		return nil, fmt.Errorf("result document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "result doc json not string", slog.String("plantID", plantID), slog.String("doc", doc.Ref.ID))
		return nil, errors.New("result 'json' field is not a string")
	}
	return []byte(jsonStr), nil
}
