package client

import (
	"context"
	"errors"
	"fmt"

	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("задача не прошла проверку")

// PersistenceError - запрос на изменение не выполнен, оптимистичное изменение откатено
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Snapshot - полный список задач на момент ревизии
type Snapshot struct {
	Revision uint64
	Tasks    []task.Task
}

// Backend - источник истины для Reconciler: сервер или локальное хранилище гостя
type Backend interface {
	List(ctx context.Context) (Snapshot, error)
	Create(ctx context.Context, draft task.Draft) (task.Task, uint64, error)
	Update(ctx context.Context, id uuid.UUID, patch task.Patch) (task.Task, uint64, error)
	Delete(ctx context.Context, id uuid.UUID) (uint64, error)
	Start(ctx context.Context, id uuid.UUID) (task.Task, uint64, error)
	Complete(ctx context.Context, id uuid.UUID) (task.Task, uint64, error)
}
