package board

import (
	"sort"

	"taskPrioritizer/internal/models/task"
)

type SortBy string

const (
	SortNone     SortBy = ""
	SortStart    SortBy = "start"
	SortEnd      SortBy = "end"
	SortPriority SortBy = "priority"
)

func (s SortBy) Valid() bool {
	switch s {
	case SortNone, SortStart, SortEnd, SortPriority:
		return true
	}
	return false
}

// Filter - фильтры списка. Пустое значение поля означает "все".
type Filter struct {
	Priority task.Priority
	Status   task.Status
	SortBy   SortBy
}

var priorityRank = map[task.Priority]int{
	task.PriorityHigh:   0,
	task.PriorityMedium: 1,
	task.PriorityLow:    2,
}

// Apply возвращает новый срез. Задачи без нужной даты уходят в конец.
func (f Filter) Apply(tasks []task.Task) []task.Task {
	res := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		res = append(res, t)
	}

	switch f.SortBy {
	case SortStart:
		sortByDate(res, func(t task.Task) task.Date { return t.StartDate })
	case SortEnd:
		sortByDate(res, func(t task.Task) task.Date { return t.EndDate })
	case SortPriority:
		sort.SliceStable(res, func(i, j int) bool {
			return priorityRank[res[i].Priority] < priorityRank[res[j].Priority]
		})
	}
	return res
}

func sortByDate(tasks []task.Task, date func(task.Task) task.Date) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, okA := date(tasks[i]).Get()
		b, okB := date(tasks[j]).Get()
		if okA != okB {
			return okA
		}
		return okA && a.Before(b)
	})
}
