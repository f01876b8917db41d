package client

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/raster"
)

// MockConverter is a mock implementation of Converter for testing.
// It uses testify/mock to allow test assertions on method calls.
type MockConverter struct {
	mock.Mock
}

// Sources mocks listing the source files of a job.
func (m *MockConverter) Sources(ctx context.Context, job *domain.Job) ([]string, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Convert mocks converting a job onto a grid.
func (m *MockConverter) Convert(ctx context.Context, job *domain.Job, grid *domain.GridDefinition) ([]*raster.Raster, error) {
	args := m.Called(ctx, job, grid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*raster.Raster), args.Error(1)
}

// NewMockConverter creates a new mock converter.
func NewMockConverter() *MockConverter {
	return &MockConverter{}
}
