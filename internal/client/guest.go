package client

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
)

const (
	GuestTasksKey = "guest_tasks"
	GuestOrderKey = "guest_board_order"
)

// GuestBackend - единственный писатель в гостевом режиме. Каждое изменение сразу
// пишется в KV и становится новым состоянием, ревизия растёт локально.
type GuestBackend struct {
	kv    *KV
	rules classifier.Rules
	now   func() time.Time

	mu       sync.Mutex
	tasks    []task.Task
	order    board.Order
	revision uint64
}

func NewGuestBackend(kv *KV, rules classifier.Rules) (*GuestBackend, error) {
	g := &GuestBackend{kv: kv, rules: rules, now: time.Now}

	if _, err := kv.Get(GuestTasksKey, &g.tasks); err != nil {
		return nil, err
	}
	if _, err := kv.Get(GuestOrderKey, &g.order); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GuestBackend) sortedLocked() []task.Task {
	res := slices.Clone(g.tasks)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (g *GuestBackend) List(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{Revision: g.revision, Tasks: g.sortedLocked()}, nil
}

// commitLocked сохраняет новый список, при ошибке состояние не меняется
func (g *GuestBackend) commitLocked(next []task.Task) (uint64, error) {
	if err := g.kv.Put(GuestTasksKey, next); err != nil {
		return 0, err
	}
	g.tasks = next
	g.revision++
	return g.revision, nil
}

func (g *GuestBackend) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(g.tasks, func(t task.Task) bool { return t.ID == id })
}

func inputOf(t task.Task) classifier.Input {
	return classifier.Input{Title: t.Title, Description: t.Description, StartDate: t.StartDate, EndDate: t.EndDate}
}

func (g *GuestBackend) Create(ctx context.Context, draft task.Draft) (task.Task, uint64, error) {
	if err := validateDraft(draft); err != nil {
		return task.Task{}, 0, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return task.Task{}, 0, fmt.Errorf("генерация id: %w", err)
	}

	t := task.Task{
		ID:          id,
		Title:       draft.Title,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		Priority:    draft.Priority,
		Status:      draft.Status,
		StatusAuto:  !draft.Status.Valid(),
		CreatedAt:   g.now(),
		Version:     1,
	}
	if !t.Priority.Valid() || !t.Status.Valid() {
		result := g.rules.Classify(inputOf(t))
		if !t.Priority.Valid() {
			t.Priority = result.Priority
		}
		if !t.Status.Valid() {
			t.Status = result.Status
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	revision, err := g.commitLocked(append(slices.Clone(g.tasks), t))
	if err != nil {
		return task.Task{}, 0, err
	}
	return t, revision, nil
}

func (g *GuestBackend) mutate(id uuid.UUID, change func(task.Task) (task.Task, error)) (task.Task, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.indexLocked(id)
	if idx < 0 {
		return task.Task{}, 0, ErrUnknownTask
	}

	updated, err := change(g.tasks[idx])
	if err != nil {
		return task.Task{}, 0, err
	}
	now := g.now()
	updated.UpdatedAt = &now
	updated.Version++

	next := slices.Clone(g.tasks)
	next[idx] = updated
	revision, err := g.commitLocked(next)
	if err != nil {
		return task.Task{}, 0, err
	}
	return updated, revision, nil
}

func (g *GuestBackend) Update(ctx context.Context, id uuid.UUID, patch task.Patch) (task.Task, uint64, error) {
	if err := validatePatch(patch); err != nil {
		return task.Task{}, 0, err
	}
	return g.mutate(id, func(current task.Task) (task.Task, error) {
		next := current.Apply(patch.Options()...)
		if err := validateRange(next.StartDate, next.EndDate); err != nil {
			return task.Task{}, err
		}
		if patch.NeedsClassification() {
			result := g.rules.Classify(inputOf(next))
			if patch.Priority != nil && *patch.Priority == "" {
				next.Priority = result.Priority
			}
			if patch.Status != nil && *patch.Status == "" {
				next.Status = result.Status
			}
		}
		return next, nil
	})
}

func (g *GuestBackend) Start(ctx context.Context, id uuid.UUID) (task.Task, uint64, error) {
	return g.mutate(id, func(current task.Task) (task.Task, error) {
		return current.Apply(task.WithStatus(task.StatusInProgress), task.WithStatusAuto(false)), nil
	})
}

func (g *GuestBackend) Complete(ctx context.Context, id uuid.UUID) (task.Task, uint64, error) {
	return g.mutate(id, func(current task.Task) (task.Task, error) {
		return current.Apply(task.WithStatus(task.StatusCompleted), task.WithStatusAuto(false)), nil
	})
}

func (g *GuestBackend) Delete(ctx context.Context, id uuid.UUID) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.indexLocked(id)
	if idx < 0 {
		return 0, ErrUnknownTask
	}
	revision, err := g.commitLocked(slices.Delete(slices.Clone(g.tasks), idx, idx+1))
	if err != nil {
		return 0, err
	}

	// удалённая задача не должна висеть в сохранённом порядке
	if g.order != nil {
		order := board.Order{}
		for status, ids := range g.order {
			order[status] = slices.DeleteFunc(slices.Clone(ids), func(v uuid.UUID) bool { return v == id })
		}
		if err := g.kv.Put(GuestOrderKey, order); err == nil {
			g.order = order
		}
	}
	return revision, nil
}

func (g *GuestBackend) LoadOrder() board.Order {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := board.Order{}
	for status, ids := range g.order {
		order[status] = slices.Clone(ids)
	}
	return order
}

func (g *GuestBackend) SaveOrder(order board.Order) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.kv.Put(GuestOrderKey, order); err != nil {
		return err
	}
	g.order = order
	return nil
}
