package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultRemoveDelay = 3 * time.Second

var ErrUnknownTask = errors.New("задача не найдена в локальном списке")

// OrderStore хранит ручной порядок доски. Реализуется только гостевым хранилищем.
type OrderStore interface {
	LoadOrder() board.Order
	SaveOrder(order board.Order) error
}

type Options struct {
	RemoveDelay time.Duration
}

type pendingEdit struct {
	seq   uint64
	patch task.Patch
}

type pendingStatus struct {
	seq        uint64
	status     task.Status
	atRevision uint64
}

type removal struct {
	gen   uint64
	timer *time.Timer
}

// Reconciler держит локальную копию задач владельца. Базовый слой - состояние
// сервера на момент revision, поверх него лежат ещё не подтверждённые правки
// и удаления. Снимки и подтверждения со старой ревизией отбрасываются.
type Reconciler struct {
	backend     Backend
	removeDelay time.Duration

	mu        sync.Mutex
	base      map[uuid.UUID]task.Task
	revision  uint64
	seq       uint64
	edits     map[uuid.UUID]pendingEdit
	statuses  map[uuid.UUID]pendingStatus
	deletes   map[uuid.UUID]uint64
	removals  map[uuid.UUID]*removal
	hidden    map[uuid.UUID]struct{}
	gen       uint64
	order     board.Order
	listeners []func([]task.Task)
}

func NewReconciler(backend Backend, opts Options) *Reconciler {
	if opts.RemoveDelay <= 0 {
		opts.RemoveDelay = DefaultRemoveDelay
	}
	r := &Reconciler{
		backend:     backend,
		removeDelay: opts.RemoveDelay,
		base:        make(map[uuid.UUID]task.Task),
		edits:       make(map[uuid.UUID]pendingEdit),
		statuses:    make(map[uuid.UUID]pendingStatus),
		deletes:     make(map[uuid.UUID]uint64),
		removals:    make(map[uuid.UUID]*removal),
		hidden:      make(map[uuid.UUID]struct{}),
	}
	r.order = r.canonicalOrder()
	return r
}

func (r *Reconciler) canonicalOrder() board.Order {
	if store, ok := r.backend.(OrderStore); ok {
		return store.LoadOrder()
	}
	return nil
}

// OnChange подписывает на изменения видимого списка
func (r *Reconciler) OnChange(fn func([]task.Task)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	visible := r.visibleLocked()
	listeners := append([]func([]task.Task){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(visible)
	}
}

func (r *Reconciler) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// Visible - то, что видит пользователь, новые задачи сверху
func (r *Reconciler) Visible() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visibleLocked()
}

func (r *Reconciler) effectiveLocked(t task.Task) task.Task {
	if edit, ok := r.edits[t.ID]; ok {
		overlay := edit.patch
		t = t.Apply(
			optional(overlay.Title, task.WithTitle),
			optional(overlay.Description, task.WithDescription),
			optional(overlay.StartDate, task.WithStartDate),
			optional(overlay.EndDate, task.WithEndDate),
		)
	}
	if ps, ok := r.statuses[t.ID]; ok && ps.atRevision == r.revision {
		t.Status = ps.status
	}
	return t
}

func optional[T any](value *T, opt func(T) task.TaskOption) task.TaskOption {
	if value == nil {
		return nil
	}
	return opt(*value)
}

func (r *Reconciler) visibleLocked() []task.Task {
	res := make([]task.Task, 0, len(r.base))
	for id, t := range r.base {
		if _, deleted := r.deletes[id]; deleted {
			continue
		}
		t = r.effectiveLocked(t)
		if _, hidden := r.hidden[id]; hidden && t.Status == task.StatusCompleted {
			continue
		}
		res = append(res, t)
	}

	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID.String() < res[j].ID.String()
	})
	return res
}

// Refresh запрашивает полный список, он применяется как обычный снимок
func (r *Reconciler) Refresh(ctx context.Context) error {
	snapshot, err := r.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("получение списка задач: %w", err)
	}
	r.ApplySnapshot(snapshot)
	return nil
}

// ApplySnapshot заменяет базовый слой. Снимок старше текущей ревизии отбрасывается,
// повторное применение того же снимка ничего не меняет.
func (r *Reconciler) ApplySnapshot(s Snapshot) bool {
	r.mu.Lock()
	if s.Revision < r.revision {
		r.mu.Unlock()
		logger.Debug("Client: Устаревший снимок отброшен",
			zap.Uint64("revision", s.Revision),
			zap.Uint64("current", r.revision))
		return false
	}

	base := make(map[uuid.UUID]task.Task, len(s.Tasks))
	for _, t := range s.Tasks {
		base[t.ID] = t
	}
	r.base = base
	r.revision = s.Revision
	r.order = r.canonicalOrder()
	r.pruneHiddenLocked()
	r.mu.Unlock()

	r.notify()
	return true
}

// applyConfirmedLocked применяет подтверждённую сервером задачу
func (r *Reconciler) applyConfirmedLocked(t task.Task, revision uint64) bool {
	if revision < r.revision {
		return false
	}
	r.base[t.ID] = t
	r.revision = revision
	r.pruneHiddenLocked()
	return true
}

// pruneHiddenLocked возвращает в список задачи, которые снова открыты
func (r *Reconciler) pruneHiddenLocked() {
	for id := range r.hidden {
		t, ok := r.base[id]
		if !ok || t.Status != task.StatusCompleted {
			delete(r.hidden, id)
		}
	}
}

func validateDraft(d task.Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return validateRange(d.StartDate, d.EndDate)
}

func validateRange(start, end task.Date) error {
	s, okStart := start.Get()
	e, okEnd := end.Get()
	if okStart && okEnd && e.Before(s) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	return nil
}

func validatePatch(p task.Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

// Create не оптимистичен: id и классификацию назначает backend
func (r *Reconciler) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := validateDraft(draft); err != nil {
		return task.Task{}, err
	}

	created, revision, err := r.backend.Create(ctx, draft)
	if err != nil {
		return task.Task{}, &PersistenceError{Op: "create", Err: err}
	}

	r.mu.Lock()
	r.applyConfirmedLocked(created, revision)
	r.mu.Unlock()

	r.notify()
	return created, nil
}

func (r *Reconciler) knownLocked(id uuid.UUID) bool {
	if _, deleted := r.deletes[id]; deleted {
		return false
	}
	_, ok := r.base[id]
	return ok
}

func mergePatch(prev, next task.Patch) task.Patch {
	if next.Title != nil {
		prev.Title = next.Title
	}
	if next.Description != nil {
		prev.Description = next.Description
	}
	if next.StartDate != nil {
		prev.StartDate = next.StartDate
	}
	if next.EndDate != nil {
		prev.EndDate = next.EndDate
	}
	return prev
}

// Update показывает правку сразу, а после ответа backend берёт задачу из подтверждения.
// Приоритет и статус в оверлей не попадают: ими владеет сервер.
func (r *Reconciler) Update(ctx context.Context, id uuid.UUID, patch task.Patch) (task.Task, error) {
	if err := validatePatch(patch); err != nil {
		return task.Task{}, err
	}

	r.mu.Lock()
	if !r.knownLocked(id) {
		r.mu.Unlock()
		return task.Task{}, ErrUnknownTask
	}
	if patch.StartDate != nil || patch.EndDate != nil {
		next := r.effectiveLocked(r.base[id]).Apply(patch.Options()...)
		if err := validateRange(next.StartDate, next.EndDate); err != nil {
			r.mu.Unlock()
			return task.Task{}, err
		}
	}
	r.seq++
	seq := r.seq
	r.edits[id] = pendingEdit{seq: seq, patch: mergePatch(r.edits[id].patch, patch)}
	r.mu.Unlock()
	r.notify()

	updated, revision, err := r.backend.Update(ctx, id, patch)

	r.mu.Lock()
	if edit, ok := r.edits[id]; ok && edit.seq == seq {
		delete(r.edits, id)
	}
	if err == nil {
		r.applyConfirmedLocked(updated, revision)
	}
	r.mu.Unlock()
	r.notify()

	if err != nil {
		return task.Task{}, &PersistenceError{Op: "update", Err: err}
	}
	return updated, nil
}

// Delete скрывает задачу сразу. После подтверждения список перечитывается,
// и только этот перечитанный список снимает скрытие.
func (r *Reconciler) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	if !r.knownLocked(id) {
		r.mu.Unlock()
		return ErrUnknownTask
	}
	r.seq++
	seq := r.seq
	r.deletes[id] = seq
	r.cancelRemovalLocked(id)
	r.mu.Unlock()
	r.notify()

	revision, err := r.backend.Delete(ctx, id)
	if err != nil {
		r.mu.Lock()
		if r.deletes[id] == seq {
			delete(r.deletes, id)
		}
		r.mu.Unlock()
		r.notify()
		return &PersistenceError{Op: "delete", Err: err}
	}

	r.mu.Lock()
	if revision >= r.revision {
		delete(r.base, id)
		r.revision = revision
	}
	r.mu.Unlock()

	if err := r.Refresh(ctx); err != nil {
		logger.Warn("Client: Не удалось перечитать список после удаления", zap.Error(err))
	}

	r.mu.Lock()
	if r.deletes[id] == seq {
		delete(r.deletes, id)
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

func (r *Reconciler) Start(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return r.setStatus(ctx, id, task.StatusInProgress, "start", r.backend.Start)
}

// Complete дополнительно убирает задачу из списка через RemoveDelay
func (r *Reconciler) Complete(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return r.setStatus(ctx, id, task.StatusCompleted, "complete", r.backend.Complete)
}

type statusCall func(ctx context.Context, id uuid.UUID) (task.Task, uint64, error)

func (r *Reconciler) setStatus(ctx context.Context, id uuid.UUID, status task.Status, op string, call statusCall) (task.Task, error) {
	r.mu.Lock()
	if !r.knownLocked(id) {
		r.mu.Unlock()
		return task.Task{}, ErrUnknownTask
	}
	r.seq++
	seq := r.seq
	r.statuses[id] = pendingStatus{seq: seq, status: status, atRevision: r.revision}
	if status == task.StatusCompleted {
		r.scheduleRemovalLocked(id)
	} else {
		r.cancelRemovalLocked(id)
		delete(r.hidden, id)
	}
	r.mu.Unlock()
	r.notify()

	updated, revision, err := call(ctx, id)

	r.mu.Lock()
	if ps, ok := r.statuses[id]; ok && ps.seq == seq {
		delete(r.statuses, id)
	}
	if err != nil && status == task.StatusCompleted {
		r.cancelRemovalLocked(id)
	}
	if err == nil {
		r.applyConfirmedLocked(updated, revision)
	}
	r.mu.Unlock()
	r.notify()

	if err != nil {
		return task.Task{}, &PersistenceError{Op: op, Err: err}
	}
	return updated, nil
}

func (r *Reconciler) scheduleRemovalLocked(id uuid.UUID) {
	r.cancelRemovalLocked(id)
	r.gen++
	gen := r.gen
	r.removals[id] = &removal{
		gen:   gen,
		timer: time.AfterFunc(r.removeDelay, func() { r.fireRemoval(id, gen) }),
	}
}

func (r *Reconciler) cancelRemovalLocked(id uuid.UUID) {
	if rm, ok := r.removals[id]; ok {
		rm.timer.Stop()
		delete(r.removals, id)
	}
}

// fireRemoval - отложенное скрытие завершённой задачи. Если задачи уже нет
// или она снова открыта, ничего не происходит.
func (r *Reconciler) fireRemoval(id uuid.UUID, gen uint64) {
	r.mu.Lock()
	rm, ok := r.removals[id]
	if !ok || rm.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.removals, id)

	t, exists := r.base[id]
	_, deleted := r.deletes[id]
	if !exists || deleted || r.effectiveLocked(t).Status != task.StatusCompleted {
		r.mu.Unlock()
		return
	}
	r.hidden[id] = struct{}{}
	r.mu.Unlock()
	r.notify()
}

// Board строит доску из видимых задач с учётом ручного порядка
func (r *Reconciler) Board(now time.Time) board.Board {
	r.mu.Lock()
	visible := r.visibleLocked()
	order := r.order
	r.mu.Unlock()
	return board.Build(visible, now, order)
}

// Move - ручная перестановка карточки. Для гостя порядок сохраняется как канонический,
// иначе живёт до следующего снимка.
func (r *Reconciler) Move(status task.Status, id uuid.UUID, index int, now time.Time) error {
	order, err := r.Board(now).Move(status, id, index)
	if err != nil {
		return err
	}

	if store, ok := r.backend.(OrderStore); ok {
		if err := store.SaveOrder(order); err != nil {
			return &PersistenceError{Op: "reorder", Err: err}
		}
	}

	r.mu.Lock()
	r.order = order
	r.mu.Unlock()
	r.notify()
	return nil
}

// Close останавливает отложенные скрытия
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.removals {
		r.cancelRemovalLocked(id)
	}
}
