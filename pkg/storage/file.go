package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/types"
)

// FileProvider stores a single pre-computed result as a JSON file. The plant
// id is not part of the file name, so one file holds one plant.
type FileProvider struct {
	path string
}

func configuredFile() *FileProvider {
	path := lflag.String("results-file", "results.json", "JSON file holding the pre-computed result")

	f := &FileProvider{}
	lflag.Do(func() {
		f.path = *path
	})
	return f
}

// NewFileProvider returns a provider reading and writing path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.path == "" {
		return errors.New("results-file is required")
	}
	return nil
}

// SaveResult writes result to the file, replacing it atomically.
func (f *FileProvider) SaveResult(ctx context.Context, plantID string, result types.AnalysisResponse) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close result file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	log.Ctx(ctx).InfoContext(ctx, "saved result",
		slog.String("path", f.path),
		slog.String("plantID", plantID),
		slog.Int("bytes", len(b)),
	)
	return nil
}

// GetLatestResult returns the file contents.
func (f *FileProvider) GetLatestResult(ctx context.Context, plantID string) ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s does not hold valid json", f.path)
	}
	return b, nil
}

// Close implements Database.
func (f *FileProvider) Close() error {
	return nil
}
