package batch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockSweeper struct {
	mock.Mock
}

func (_m *MockSweeper) ProcessOverdues(ctx context.Context, today time.Time) (int, error) {
	ret := _m.Called(ctx, today)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockSweeper) CorrectOverdueState(ctx context.Context, today time.Time) (int, error) {
	ret := _m.Called(ctx, today)
	return ret.Int(0), ret.Error(1)
}

func TestOverdueSweepJobRun(t *testing.T) {
	mockSweeper := new(MockSweeper)
	today := time.Date(2025, time.February, 16, 0, 5, 0, 0, time.UTC)
	job := NewOverdueSweepJob(mockSweeper, func() time.Time { return today }, logger)

	ctx := context.Background()
	mockSweeper.On("ProcessOverdues", ctx, today).Return(42, nil)

	err := job.Run(ctx)

	assert.NoError(t, err)
	mockSweeper.AssertExpectations(t)
}

func TestOverdueSweepJobPropagatesError(t *testing.T) {
	mockSweeper := new(MockSweeper)
	today := time.Date(2025, time.February, 16, 0, 5, 0, 0, time.UTC)
	job := NewOverdueSweepJob(mockSweeper, func() time.Time { return today }, logger)

	ctx := context.Background()
	sweepErr := errors.New("sweep completed with 3 errors")
	mockSweeper.On("ProcessOverdues", ctx, today).Return(10, sweepErr)

	err := job.Run(ctx)

	assert.ErrorIs(t, err, sweepErr)
}

func TestCorrectionJobRun(t *testing.T) {
	mockSweeper := new(MockSweeper)
	today := time.Date(2025, time.February, 16, 3, 30, 0, 0, time.UTC)
	job := NewCorrectionJob(mockSweeper, func() time.Time { return today }, logger)

	ctx := context.Background()
	mockSweeper.On("CorrectOverdueState", ctx, today).Return(5, nil)

	err := job.Run(ctx)

	assert.NoError(t, err)
	mockSweeper.AssertExpectations(t)
}

func TestJobConstructorsDefaultClock(t *testing.T) {
	mockSweeper := new(MockSweeper)

	assert.NotPanics(t, func() { NewOverdueSweepJob(mockSweeper, nil, logger) })
	assert.NotPanics(t, func() { NewCorrectionJob(mockSweeper, nil, logger) })
	assert.Panics(t, func() { NewOverdueSweepJob(nil, nil, logger) })
}
