package board

import (
	"errors"
	"slices"
	"sort"
	"time"

	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
)

var (
	ErrUnknownColumn = errors.New("неизвестная колонка")
	ErrNotInColumn   = errors.New("задача не в этой колонке")
)

// Progress - доля прошедшего времени между началом и сроком, 0..100
func Progress(t task.Task, now time.Time) float64 {
	start, okStart := t.StartDate.Get()
	end, okEnd := t.EndDate.Get()
	if !okStart || !okEnd || now.Before(start) {
		return 0
	}

	total := end.Sub(start)
	if total <= 0 {
		return 100
	}

	p := 100 * float64(now.Sub(start)) / float64(total)
	return min(max(p, 0), 100)
}

type Card struct {
	Task     task.Task `json:"task"`
	Progress float64   `json:"progress"`
}

type Column struct {
	Status task.Status `json:"status"`
	Cards  []Card      `json:"cards"`
}

type Board struct {
	Columns []Column `json:"columns"`
}

// Order - ручной порядок карточек по колонкам
type Order map[task.Status][]uuid.UUID

// Build раскладывает задачи по трём колонкам. Внутри колонки сначала идут
// задачи из ручного порядка, затем остальные по убыванию прогресса.
func Build(tasks []task.Task, now time.Time, order Order) Board {
	b := Board{Columns: make([]Column, 0, len(task.Statuses))}
	for _, status := range task.Statuses {
		b.Columns = append(b.Columns, Column{Status: status, Cards: []Card{}})
	}

	for _, t := range tasks {
		idx := slices.Index(task.Statuses, t.Status)
		if idx < 0 {
			continue
		}
		b.Columns[idx].Cards = append(b.Columns[idx].Cards, Card{Task: t, Progress: Progress(t, now)})
	}

	for i := range b.Columns {
		col := &b.Columns[i]
		rank := map[uuid.UUID]int{}
		for pos, id := range order[col.Status] {
			if _, seen := rank[id]; !seen {
				rank[id] = pos
			}
		}

		sort.SliceStable(col.Cards, func(a, c int) bool {
			ra, okA := rank[col.Cards[a].Task.ID]
			rc, okC := rank[col.Cards[c].Task.ID]
			switch {
			case okA && okC:
				return ra < rc
			case okA != okC:
				return okA
			default:
				return col.Cards[a].Progress > col.Cards[c].Progress
			}
		})
	}
	return b
}

func (b Board) Column(status task.Status) (Column, bool) {
	for _, col := range b.Columns {
		if col.Status == status {
			return col, true
		}
	}
	return Column{}, false
}

// Order возвращает текущий порядок карточек на доске
func (b Board) Order() Order {
	o := Order{}
	for _, col := range b.Columns {
		ids := make([]uuid.UUID, 0, len(col.Cards))
		for _, card := range col.Cards {
			ids = append(ids, card.Task.ID)
		}
		o[col.Status] = ids
	}
	return o
}

// Move переставляет карточку внутри колонки, индекс приводится к границам колонки
func (b Board) Move(status task.Status, id uuid.UUID, index int) (Order, error) {
	col, ok := b.Column(status)
	if !ok {
		return nil, ErrUnknownColumn
	}

	order := b.Order()
	ids := order[status]
	from := slices.Index(ids, id)
	if from < 0 {
		return nil, ErrNotInColumn
	}

	ids = slices.Delete(ids, from, from+1)
	index = min(max(index, 0), len(ids))
	ids = slices.Insert(ids, index, id)
	order[col.Status] = ids
	return order, nil
}
