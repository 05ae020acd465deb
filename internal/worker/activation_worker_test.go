package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/realtime"
	"taskPrioritizer/internal/repository/task/inmemory"
	"taskPrioritizer/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) ActivateStarted(ctx context.Context, deadline time.Time, limit int) (int, error) {
	args := m.Called(ctx, deadline, limit)
	return args.Int(0), args.Error(1)
}

func TestNewActivationWorker_Defaults(t *testing.T) {
	w := NewActivationWorker(new(MockActivator), nil, nil)
	assert.Equal(t, 5*time.Minute, w.interval)
	assert.Equal(t, 100, w.batchSize)

	interval := time.Second
	batch := 7
	w = NewActivationWorker(new(MockActivator), &interval, &batch)
	assert.Equal(t, time.Second, w.interval)
	assert.Equal(t, 7, w.batchSize)
}

func TestActivationWorker_DeadlineIsStartOfTomorrow(t *testing.T) {
	w := NewActivationWorker(new(MockActivator), nil, nil)
	w.now = func() time.Time { return time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC) }

	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), w.deadline())
}

func TestActivationWorker_CheckDrainsFullBatches(t *testing.T) {
	activator := new(MockActivator)
	batch := 2
	w := NewActivationWorker(activator, nil, &batch)

	activator.On("ActivateStarted", mock.Anything, mock.Anything, 2).Return(2, nil).Twice()
	activator.On("ActivateStarted", mock.Anything, mock.Anything, 2).Return(1, nil).Once()

	assert.Equal(t, 5, w.Check(context.Background()))
	activator.AssertExpectations(t)
}

func TestActivationWorker_CheckStopsOnError(t *testing.T) {
	activator := new(MockActivator)
	w := NewActivationWorker(activator, nil, nil)
	activator.On("ActivateStarted", mock.Anything, mock.Anything, 100).Return(0, errors.New("db down")).Once()

	assert.Equal(t, 0, w.Check(context.Background()))
	activator.AssertExpectations(t)
}

func TestActivationWorker_StartStopsOnCancel(t *testing.T) {
	activator := new(MockActivator)
	interval := 10 * time.Millisecond
	w := NewActivationWorker(activator, &interval, nil)
	activator.On("ActivateStarted", mock.Anything, mock.Anything, 100).Return(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, len(activator.Calls), 2)
}

func TestActivationWorker_CheckKeepsChosenStatus(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()
	hub := realtime.NewHub(storage, realtime.Options{})
	defer hub.Close()
	svc := service.NewTaskService(storage, classifier.NewService(nil, classifier.NewRules(nil)), hub)

	owner := uuid.New()
	now := time.Now()

	chosen, _, err := svc.Create(ctx, owner, task.Draft{
		Title:       "Report",
		Description: "quarterly numbers",
		StartDate:   task.Some(now.Add(-48 * time.Hour)),
		Status:      task.StatusPending,
	})
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, chosen.Status)
	require.False(t, chosen.StatusAuto)

	classified, _, err := svc.Create(ctx, owner, task.Draft{
		Title:       "Review",
		Description: "pull request",
		StartDate:   task.Some(now.Add(48 * time.Hour)),
	})
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, classified.Status)
	require.True(t, classified.StatusAuto)

	w := NewActivationWorker(svc, nil, nil)
	w.now = func() time.Time { return now.Add(72 * time.Hour) }

	assert.Equal(t, 1, w.Check(ctx))

	got, err := svc.Get(ctx, owner, chosen.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status, "status picked by the user survives the check")

	got, err = svc.Get(ctx, owner, classified.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)

	// быстрое действие фиксирует выбор пользователя
	_, _, err = svc.Start(ctx, owner, chosen.ID)
	require.NoError(t, err)
	started, err := svc.Get(ctx, owner, chosen.ID)
	require.NoError(t, err)
	assert.False(t, started.StatusAuto)
}
