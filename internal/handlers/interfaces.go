package handlers

import (
	"context"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/models/user"

	"github.com/google/uuid"
)

type TaskService interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, owner uuid.UUID, draft task.Draft) (*task.Task, uint64, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*task.Task, error)
	List(ctx context.Context, owner uuid.UUID) ([]*task.Task, uint64, error)
	Update(ctx context.Context, owner, id uuid.UUID, patch task.Patch) (*task.Task, uint64, error)
	Start(ctx context.Context, owner, id uuid.UUID) (*task.Task, uint64, error)
	Complete(ctx context.Context, owner, id uuid.UUID) (*task.Task, uint64, error)
	Delete(ctx context.Context, owner, id uuid.UUID) (uint64, error)
	Classify(ctx context.Context, draft task.Draft) (classifier.Result, error)
	Board(ctx context.Context, owner uuid.UUID, filter board.Filter) (board.Board, uint64, error)
}

type AuthService interface {
	Register(ctx context.Context, email, password string) (*user.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}
