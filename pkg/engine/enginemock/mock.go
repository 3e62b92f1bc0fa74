package enginemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/windboard/windboard/pkg/engine"
)

type MockLoader struct {
	mock.Mock
}

var _ engine.Loader = (*MockLoader)(nil)

func (m *MockLoader) Name() string {
	return "mock"
}

func (m *MockLoader) DataAvailable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLoader) Load(ctx context.Context) (*engine.Plant, error) {
	args := m.Called(ctx)
	plant, _ := args.Get(0).(*engine.Plant)
	return plant, args.Error(1)
}

type MockEstimator struct {
	mock.Mock
}

var _ engine.Estimator = (*MockEstimator)(nil)

func (m *MockEstimator) Name() string {
	return "mock"
}

func (m *MockEstimator) Run(ctx context.Context, plant *engine.Plant, numSim int) (engine.Results, error) {
	args := m.Called(ctx, plant, numSim)
	if len(args) > 0 {
		return args.Get(0).(engine.Results), args.Error(1)
	}
	return engine.Results{}, nil
}
