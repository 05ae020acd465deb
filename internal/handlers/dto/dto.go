package dto

import (
	"encoding/json"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
)

// OptionalDate различает отсутствующее поле и явный null
type OptionalDate struct {
	Set  bool
	Date task.Date
}

func SetDate(d task.Date) OptionalDate {
	return OptionalDate{Set: true, Date: d}
}

func (o OptionalDate) IsZero() bool {
	return !o.Set
}

func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Date.UnmarshalJSON(data)
}

func (o OptionalDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Date)
}

func (o OptionalDate) ptr() *task.Date {
	if !o.Set {
		return nil
	}
	d := o.Date
	return &d
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CreateTaskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartDate   task.Date     `json:"start_date"`
	EndDate     task.Date     `json:"end_date"`
	Priority    task.Priority `json:"priority,omitempty"`
	Status      task.Status   `json:"status,omitempty"`
}

func (r CreateTaskRequest) Draft() task.Draft {
	return task.Draft{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Priority:    r.Priority,
		Status:      r.Status,
	}
}

func FromDraft(d task.Draft) CreateTaskRequest {
	return CreateTaskRequest{
		Title:       d.Title,
		Description: d.Description,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Priority:    d.Priority,
		Status:      d.Status,
	}
}

// UpdateTaskRequest - частичное обновление. Пустая строка в priority/status
// просит определить значение автоматически.
type UpdateTaskRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	StartDate   OptionalDate   `json:"start_date,omitzero"`
	EndDate     OptionalDate   `json:"end_date,omitzero"`
	Priority    *task.Priority `json:"priority,omitempty"`
	Status      *task.Status   `json:"status,omitempty"`
}

func (r UpdateTaskRequest) Patch() task.Patch {
	return task.Patch{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate.ptr(),
		EndDate:     r.EndDate.ptr(),
		Priority:    r.Priority,
		Status:      r.Status,
	}
}

func FromPatch(p task.Patch) UpdateTaskRequest {
	r := UpdateTaskRequest{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		Status:      p.Status,
	}
	if p.StartDate != nil {
		r.StartDate = SetDate(*p.StartDate)
	}
	if p.EndDate != nil {
		r.EndDate = SetDate(*p.EndDate)
	}
	return r
}

type TaskResponse struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartDate   task.Date     `json:"start_date"`
	EndDate     task.Date     `json:"end_date"`
	Priority    task.Priority `json:"priority"`
	Status      task.Status   `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
	Version     int           `json:"version"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     t.Version,
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

func (r TaskResponse) Task() task.Task {
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Priority:    r.Priority,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}

type TaskEnvelope struct {
	Task     TaskResponse `json:"task"`
	Revision uint64       `json:"revision"`
}

type TaskListResponse struct {
	Tasks    []TaskResponse `json:"tasks"`
	Revision uint64         `json:"revision"`
}

type ClassifyRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   task.Date `json:"start_date"`
	EndDate     task.Date `json:"end_date"`
}

type ClassifyResponse struct {
	Priority task.Priority `json:"priority"`
	Status   task.Status   `json:"status"`
}

type CardResponse struct {
	Task     TaskResponse `json:"task"`
	Progress float64      `json:"progress"`
}

type ColumnResponse struct {
	Status task.Status    `json:"status"`
	Cards  []CardResponse `json:"cards"`
}

type BoardResponse struct {
	Columns  []ColumnResponse `json:"columns"`
	Revision uint64           `json:"revision"`
}

func FromBoard(b board.Board, revision uint64) BoardResponse {
	res := BoardResponse{Columns: make([]ColumnResponse, 0, len(b.Columns)), Revision: revision}
	for _, col := range b.Columns {
		cards := make([]CardResponse, 0, len(col.Cards))
		for _, card := range col.Cards {
			t := card.Task
			cards = append(cards, CardResponse{Task: FromTask(&t), Progress: card.Progress})
		}
		res.Columns = append(res.Columns, ColumnResponse{Status: col.Status, Cards: cards})
	}
	return res
}

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
