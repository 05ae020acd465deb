package classifier

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"taskPrioritizer/internal/models/task"
)

type Input struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   task.Date `json:"start_date,omitzero"`
	EndDate     task.Date `json:"end_date,omitzero"`
}

type Result struct {
	Priority task.Priority `json:"priority"`
	Status   task.Status   `json:"status"`
}

var urgencyWords = map[string]struct{}{
	"urgent": {}, "asap": {}, "now": {}, "today": {}, "soon": {}, "tomorrow": {},
}

var doneWords = map[string]struct{}{
	"completed": {}, "submitted": {}, "done": {}, "finished": {},
}

// порог числа в описании, после которого приоритет повышается
const magnitudeThreshold = 20

// Rules - детерминированный классификатор по тексту и датам.
// Используется как запасной путь, когда модель недоступна.
type Rules struct {
	now func() time.Time
}

func NewRules(now func() time.Time) Rules {
	if now == nil {
		now = time.Now
	}
	return Rules{now: now}
}

func (r Rules) Classify(in Input) Result {
	now := r.clock()
	words := tokenize(in.Title + " " + in.Description)

	return Result{
		Priority: priorityFor(in, words, now),
		Status:   statusFor(in, words, now),
	}
}

func (r Rules) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func priorityFor(in Input, words []string, now time.Time) task.Priority {
	priority := task.PriorityLow
	if end, ok := in.EndDate.Get(); ok {
		days := end.Sub(now).Hours() / 24
		switch {
		case days <= 1:
			priority = task.PriorityHigh
		case days <= 3:
			priority = task.PriorityMedium
		}
	}

	if containsAny(words, urgencyWords) {
		return task.PriorityHigh
	}

	if hasLargeNumber(in.Description) {
		priority = priority.Raise()
	}
	return priority
}

func statusFor(in Input, words []string, now time.Time) task.Status {
	if containsAny(words, doneWords) {
		return task.StatusCompleted
	}
	if start, ok := in.StartDate.Get(); ok {
		y, m, d := now.Date()
		tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
		if start.Before(tomorrow) {
			return task.StatusInProgress
		}
	}
	return task.StatusPending
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// короткие ключевые слова совпадают только целиком ("now" не должен находиться в "snow")
const minStemLength = 4

// containsAny ищет ключевое слово среди токенов. Слова от minStemLength букв
// совпадают и с формами: "urgently", "sooner", "todays".
func containsAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
		for keyword := range set {
			if len(keyword) >= minStemLength && strings.HasPrefix(w, keyword) {
				return true
			}
		}
	}
	return false
}

func hasLargeNumber(text string) bool {
	numbers := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	for _, raw := range numbers {
		raw = strings.Trim(raw, ".")
		if raw == "" {
			continue
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil && n >= magnitudeThreshold {
			return true
		}
	}
	return false
}
