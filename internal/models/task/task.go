package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OwnerID     uuid.UUID  `json:"owner_id,omitzero" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	StartDate   Date       `json:"start_date,omitzero" db:"start_date"`
	EndDate     Date       `json:"end_date,omitzero" db:"end_date"`
	Priority    Priority   `json:"priority" db:"priority"`
	Status      Status     `json:"status" db:"status"`
	StatusAuto  bool       `json:"status_auto,omitempty" db:"status_auto"` // статус выставлен классификатором, а не пользователем
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version     int        `json:"version" db:"version"`
}

type Priority string
type Status string

const PriorityLow Priority = "low"
const PriorityMedium Priority = "medium"
const PriorityHigh Priority = "high"

const StatusPending Status = "pending"
const StatusInProgress Status = "in_progress"
const StatusCompleted Status = "completed"

// значения по умолчанию, если классификация не дала результата
const DefaultPriority = PriorityMedium
const DefaultStatus = StatusPending

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Raise поднимает приоритет на один уровень, high остаётся high
func (p Priority) Raise() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	default:
		return PriorityHigh
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Draft - данные для создания задачи. Пустые Priority/Status заполняет классификатор.
type Draft struct {
	Title       string
	Description string
	StartDate   Date
	EndDate     Date
	Priority    Priority
	Status      Status
}

// Patch - частичное обновление. nil - поле не меняется.
// Priority/Status, указывающие на пустое значение, означают "определить автоматически".
type Patch struct {
	Title       *string
	Description *string
	StartDate   *Date
	EndDate     *Date
	Priority    *Priority
	Status      *Status
}

func (p Patch) NeedsClassification() bool {
	return (p.Priority != nil && *p.Priority == "") || (p.Status != nil && *p.Status == "")
}

// Options переводит патч в набор TaskOption
func (p Patch) Options() []TaskOption {
	opts := []TaskOption{}
	if p.Title != nil {
		opts = append(opts, WithTitle(*p.Title))
	}
	if p.Description != nil {
		opts = append(opts, WithDescription(*p.Description))
	}
	if p.StartDate != nil {
		opts = append(opts, WithStartDate(*p.StartDate))
	}
	if p.EndDate != nil {
		opts = append(opts, WithEndDate(*p.EndDate))
	}
	if p.Priority != nil {
		opts = append(opts, WithPriority(*p.Priority))
	}
	if p.Status != nil {
		opts = append(opts, WithStatus(*p.Status), WithStatusAuto(*p.Status == ""))
	}
	return opts
}

// Apply применяет опции к копии задачи
func (t Task) Apply(opts ...TaskOption) Task {
	for _, opt := range opts {
		if opt != nil {
			opt(&t)
		}
	}
	return t
}
