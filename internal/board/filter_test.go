package board_test

import (
	"testing"
	"time"

	"taskPrioritizer/internal/board"
	"taskPrioritizer/internal/models/task"

	"github.com/stretchr/testify/assert"
)

func titles(tasks []task.Task) []string {
	res := []string{}
	for _, t := range tasks {
		res = append(res, t.Title)
	}
	return res
}

func TestFilter_Apply(t *testing.T) {
	tasks := []task.Task{
		{Title: "a", Priority: task.PriorityLow, Status: task.StatusPending, EndDate: task.Some(now.Add(48 * time.Hour))},
		{Title: "b", Priority: task.PriorityHigh, Status: task.StatusCompleted, StartDate: task.Some(now)},
		{Title: "c", Priority: task.PriorityHigh, Status: task.StatusPending, EndDate: task.Some(now.Add(time.Hour)), StartDate: task.Some(now.Add(-time.Hour))},
		{Title: "d", Priority: task.PriorityMedium, Status: task.StatusInProgress},
	}

	tests := []struct {
		name     string
		filter   board.Filter
		expected []string
	}{
		{name: "no filter keeps order", filter: board.Filter{}, expected: []string{"a", "b", "c", "d"}},
		{name: "by priority", filter: board.Filter{Priority: task.PriorityHigh}, expected: []string{"b", "c"}},
		{name: "by status", filter: board.Filter{Status: task.StatusPending}, expected: []string{"a", "c"}},
		{name: "sort by end, missing last", filter: board.Filter{SortBy: board.SortEnd}, expected: []string{"c", "a", "b", "d"}},
		{name: "sort by start, missing last", filter: board.Filter{SortBy: board.SortStart}, expected: []string{"c", "b", "a", "d"}},
		{name: "sort by priority", filter: board.Filter{SortBy: board.SortPriority}, expected: []string{"b", "c", "d", "a"}},
		{name: "combined", filter: board.Filter{Status: task.StatusPending, SortBy: board.SortEnd}, expected: []string{"c", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, titles(tt.filter.Apply(tasks)))
		})
	}

	// исходный срез не меняется
	assert.Equal(t, []string{"a", "b", "c", "d"}, titles(tasks))
}

func TestSortBy_Valid(t *testing.T) {
	assert.True(t, board.SortEnd.Valid())
	assert.True(t, board.SortNone.Valid())
	assert.False(t, board.SortBy("title").Valid())
}
