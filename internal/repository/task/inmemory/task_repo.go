package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"
	repo "taskPrioritizer/internal/repository"

	"github.com/google/uuid"
)

// TaskStorage хранит копии задач: наружу никогда не отдаются внутренние указатели
type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	mtx     *sync.RWMutex
	ids     []uuid.UUID
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[taskToCreate.ID]; ok {
		return repo.ErrDuplicate
	}

	taskToCreate.CreatedAt = time.Now()
	taskToCreate.Version = 1

	stored := *taskToCreate
	s.storage[stored.ID] = &stored
	s.ids = append(s.ids, stored.ID)
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[taskToUpdate.ID]
	if !ok || existing.OwnerID != taskToUpdate.OwnerID {
		return repo.ErrNotFound
	}
	if existing.Version != taskToUpdate.Version {
		return repo.ErrVersionConflict
	}

	now := time.Now()
	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	taskToUpdate.CreatedAt = existing.CreatedAt

	stored := *taskToUpdate
	s.storage[stored.ID] = &stored
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, owner, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.storage[id]
	if !ok || taskToGet.OwnerID != owner {
		return nil, repo.ErrNotFound
	}
	copied := *taskToGet
	return &copied, nil
}

func (s *TaskStorage) Delete(ctx context.Context, owner, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok || existing.OwnerID != owner {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

// задачи владельца, новые сверху
func (s *TaskStorage) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.ids {
		t := s.storage[id]
		if t.OwnerID != owner {
			continue
		}
		copied := *t
		res = append(res, &copied)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// ожидающие задачи с автоматическим статусом, у которых дата начала уже наступила
func (s *TaskStorage) ListPendingStartedBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*task.Task{}
	for _, id := range s.ids {
		if len(tasks) >= limit {
			break
		}

		t := s.storage[id]
		start, ok := t.StartDate.Get()
		if t.Status != task.StatusPending || !t.StatusAuto || !ok || !start.Before(deadline) {
			continue
		}
		copied := *t
		tasks = append(tasks, &copied)
	}
	return tasks, nil
}
