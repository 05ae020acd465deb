package handlers

import (
	"context"
	"net/http"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/handlers/dto"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Сервис нездоров", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", "task-prioritizer"),
			toPayload("time", time.Now().UTC()))
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", "task-prioritizer"),
		toPayload("time", time.Now().UTC()))
}

func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	tasks, revision, err := s.TaskService.List(r.Context(), owner)
	if err != nil {
		handleServiceError(w, r, err, "list_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	withRevision(w, revision)
	writeJSON(w, http.StatusOK, dto.TaskListResponse{Tasks: dto.FromTaskList(tasks), Revision: revision})
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	logger.Info("HTTP: Вызов сервиса создания задач")
	created, revision, err := s.TaskService.Create(r.Context(), owner, request.Draft())
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	withRevision(w, revision)
	writeJSON(w, http.StatusCreated, dto.TaskEnvelope{Task: dto.FromTask(created), Revision: revision})
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	found, err := s.TaskService.Get(r.Context(), owner, id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", found.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(found))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var request dto.UpdateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	logger.Info("HTTP: запрос к сервису обновления данных")
	updated, revision, err := s.TaskService.Update(r.Context(), owner, id, request.Patch())
	if err != nil {
		handleServiceError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	withRevision(w, revision)
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(updated), Revision: revision})
}

type statusCall func(ctx context.Context, owner, id uuid.UUID) (*task.Task, uint64, error)

func (s *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	s.statusAction(w, r, "start_task", s.TaskService.Start)
}

func (s *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	s.statusAction(w, r, "complete_task", s.TaskService.Complete)
}

// statusAction - быстрые действия карточки, меняют только статус
func (s *TaskHandler) statusAction(w http.ResponseWriter, r *http.Request, operation string, call statusCall) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	updated, revision, err := call(r.Context(), owner, id)
	if err != nil {
		handleServiceError(w, r, err, operation)
		return
	}

	logger.Info("HTTP_OUT: Статус задачи изменён",
		zap.String("task_id", id.String()),
		zap.String("status", string(updated.Status)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	withRevision(w, revision)
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(updated), Revision: revision})
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Обращение к сервису для удаления задачи")
	revision, err := s.TaskService.Delete(r.Context(), owner, id)
	if err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	withRevision(w, revision)
	w.WriteHeader(http.StatusNoContent)
}

// Classify - подсказка классификации для формы, ничего не сохраняет
func (s *TaskHandler) Classify(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if _, ok := ownerOf(w, r); !ok {
		return
	}

	var request dto.ClassifyRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	result, err := s.TaskService.Classify(r.Context(), task.Draft{
		Title:       request.Title,
		Description: request.Description,
		StartDate:   request.StartDate,
		EndDate:     request.EndDate,
	})
	if err != nil {
		handleServiceError(w, r, err, "classify")
		return
	}

	writeJSON(w, http.StatusOK, dto.ClassifyResponse{Priority: result.Priority, Status: result.Status})
}

func (s *TaskHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := board.Filter{
		Priority: task.Priority(query.Get("priority")),
		Status:   task.Status(query.Get("status")),
		SortBy:   board.SortBy(query.Get("sort")),
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "priority"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "неверное значение priority")
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "status"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "неверное значение status")
		return
	}
	if !filter.SortBy.Valid() {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "sort"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "неверное значение sort")
		return
	}

	b, revision, err := s.TaskService.Board(r.Context(), owner, filter)
	if err != nil {
		handleServiceError(w, r, err, "board")
		return
	}

	logger.Info("HTTP_OUT: Доска построена",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	withRevision(w, revision)
	writeJSON(w, http.StatusOK, dto.FromBoard(b, revision))
}
