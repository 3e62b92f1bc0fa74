package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/windboard/windboard/pkg/storage"
	"github.com/windboard/windboard/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveResult(ctx context.Context, plantID string, result types.AnalysisResponse) error {
	args := m.Called(ctx, plantID, result)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestResult(ctx context.Context, plantID string) ([]byte, error) {
	args := m.Called(ctx, plantID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		b, _ := args.Get(0).([]byte)
		return b, args.Error(1)
	}
	return nil, storage.ErrResultNotFound
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
