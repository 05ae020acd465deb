package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"
	rep "taskPrioritizer/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

const updateAttempts = 3

type TaskService struct {
	repo       TaskRepository
	classifier Classifier
	publisher  Publisher
	now        func() time.Time
}

func NewTaskService(repo TaskRepository, classifier Classifier, publisher Publisher) *TaskService {
	return &TaskService{
		repo:       repo,
		classifier: classifier,
		publisher:  publisher,
		now:        time.Now,
	}
}

func inputOf(t task.Task) classifier.Input {
	return classifier.Input{
		Title:       t.Title,
		Description: t.Description,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

// publish рассылает изменения владельцу. Ошибка рассылки не отменяет сохранённое изменение.
func (s *TaskService) publish(ctx context.Context, owner uuid.UUID) uint64 {
	revision, err := s.publisher.Publish(context.WithoutCancel(ctx), owner)
	if err != nil {
		logger.Warn("Service: Не удалось разослать обновление",
			zap.String("owner_id", owner.String()),
			zap.Error(err))
		return s.publisher.Revision(owner)
	}
	return revision
}

func (s *TaskService) Create(ctx context.Context, owner uuid.UUID, draft task.Draft) (*task.Task, uint64, error) {
	if err := validateDraft(draft); err != nil {
		return nil, 0, err
	}

	newTask := &task.Task{
		ID:          uuid.New(),
		OwnerID:     owner,
		Title:       draft.Title,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		StatusAuto:  draft.Status == "",
	}
	newTask.Priority, newTask.Status = s.classifier.Fill(ctx, inputOf(*newTask), draft.Priority, draft.Status)

	if err := s.repo.Create(ctx, newTask); err != nil {
		return nil, 0, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", newTask.ID.String()),
		zap.String("priority", string(newTask.Priority)),
		zap.String("status", string(newTask.Status)))

	return newTask, s.publish(ctx, owner), nil
}

func (s *TaskService) Get(ctx context.Context, owner, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound("задача", id.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

// List возвращает задачи владельца и ревизию, прочитанную до выборки
func (s *TaskService) List(ctx context.Context, owner uuid.UUID) ([]*task.Task, uint64, error) {
	revision := s.publisher.Revision(owner)

	tasks, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, 0, fmt.Errorf("получение задач: %w", err)
	}
	return tasks, revision, nil
}

func (s *TaskService) Update(ctx context.Context, owner, id uuid.UUID, patch task.Patch) (*task.Task, uint64, error) {
	if err := validatePatch(patch); err != nil {
		return nil, 0, err
	}

	updated, err := s.mutate(ctx, owner, id, func(current task.Task) (task.Task, error) {
		next := current.Apply(patch.Options()...)
		if err := validateDates(next.StartDate, next.EndDate); err != nil {
			return task.Task{}, err
		}

		if patch.NeedsClassification() {
			priority, status := next.Priority, next.Status
			if patch.Priority != nil && *patch.Priority == "" {
				priority = ""
			}
			if patch.Status != nil && *patch.Status == "" {
				status = ""
			}
			next.Priority, next.Status = s.classifier.Fill(ctx, inputOf(next), priority, status)
		}
		return next, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return updated, s.publish(ctx, owner), nil
}

// Start - быстрое действие "начать"
func (s *TaskService) Start(ctx context.Context, owner, id uuid.UUID) (*task.Task, uint64, error) {
	return s.setStatus(ctx, owner, id, task.StatusInProgress)
}

// Complete - быстрое действие "завершить"
func (s *TaskService) Complete(ctx context.Context, owner, id uuid.UUID) (*task.Task, uint64, error) {
	return s.setStatus(ctx, owner, id, task.StatusCompleted)
}

func (s *TaskService) setStatus(ctx context.Context, owner, id uuid.UUID, status task.Status) (*task.Task, uint64, error) {
	updated, err := s.mutate(ctx, owner, id, func(current task.Task) (task.Task, error) {
		return current.Apply(task.WithStatus(status), task.WithStatusAuto(false)), nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, s.publish(ctx, owner), nil
}

// mutate читает задачу, применяет изменение и сохраняет его,
// повторяя попытку при конфликте версий
func (s *TaskService) mutate(ctx context.Context, owner, id uuid.UUID, change func(task.Task) (task.Task, error)) (*task.Task, error) {
	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		current, err := s.Get(ctx, owner, id)
		if err != nil {
			return nil, err
		}

		next, err := change(*current)
		if err != nil {
			return nil, err
		}

		err = s.repo.Update(ctx, &next)
		switch {
		case err == nil:
			return &next, nil
		case errors.Is(err, rep.ErrNotFound):
			return nil, NewNotFound("задача", id.String())
		case errors.Is(err, rep.ErrVersionConflict):
			logger.Warn("Service: Конфликт версий, повтор",
				zap.String("task_id", id.String()),
				zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		default:
			return nil, fmt.Errorf("обновление задачи: %w", err)
		}
	}
	return nil, NewVersionConflict(id.String(), lastErr)
}

func (s *TaskService) Delete(ctx context.Context, owner, id uuid.UUID) (uint64, error) {
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return 0, NewNotFound("задача", id.String())
		}
		return 0, fmt.Errorf("удаление задачи: %w", err)
	}

	logger.Info("Service: Задача удалена", zap.String("task_id", id.String()))
	return s.publish(ctx, owner), nil
}

// Classify - рекомендательная классификация без сохранения
func (s *TaskService) Classify(ctx context.Context, draft task.Draft) (classifier.Result, error) {
	if err := validateText("title", draft.Title); err != nil {
		return classifier.Result{}, err
	}
	if err := validateDates(draft.StartDate, draft.EndDate); err != nil {
		return classifier.Result{}, err
	}
	return s.classifier.Classify(ctx, classifier.Input{
		Title:       draft.Title,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
	}), nil
}

// Board строит доску по задачам владельца после фильтрации
func (s *TaskService) Board(ctx context.Context, owner uuid.UUID, filter board.Filter) (board.Board, uint64, error) {
	tasks, revision, err := s.List(ctx, owner)
	if err != nil {
		return board.Board{}, 0, err
	}

	values := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		values = append(values, *t)
	}
	return board.Build(filter.Apply(values), s.now(), nil), revision, nil
}

// ActivateStarted переводит в работу ожидающие задачи с наступившей датой начала,
// если статус выставлен классификатором. Выбранный пользователем статус не меняется.
// Рассылает обновления затронутым владельцам.
func (s *TaskService) ActivateStarted(ctx context.Context, deadline time.Time, limit int) (int, error) {
	tasks, err := s.repo.ListPendingStartedBefore(ctx, deadline, limit)
	if err != nil {
		return 0, fmt.Errorf("получение задач для активации: %w", err)
	}

	owners := map[uuid.UUID]struct{}{}
	activated := 0
	for _, t := range tasks {
		if !t.StatusAuto {
			continue
		}
		next := t.Apply(task.WithStatus(task.StatusInProgress))
		if err := s.repo.Update(ctx, &next); err != nil {
			// задачу изменили или удалили параллельно, следующий проход её увидит
			logger.Warn("Service: Не удалось активировать задачу",
				zap.String("task_id", t.ID.String()),
				zap.Error(err))
			continue
		}
		owners[t.OwnerID] = struct{}{}
		activated++
	}

	for owner := range owners {
		s.publish(ctx, owner)
	}
	return activated, nil
}
