package service

import (
	"context"
	"time"

	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/models/user"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, owner, id uuid.UUID) (*task.Task, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error)
	ListPendingStartedBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type Classifier interface {
	Classify(ctx context.Context, in classifier.Input) classifier.Result
	Fill(ctx context.Context, in classifier.Input, priority task.Priority, status task.Status) (task.Priority, task.Status)
}

// Publisher рассылает актуальный список задач владельца и возвращает новую ревизию
type Publisher interface {
	Publish(ctx context.Context, owner uuid.UUID) (uint64, error)
	Revision(owner uuid.UUID) uint64
}

type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}
