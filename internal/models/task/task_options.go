package task

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithStartDate(date Date) TaskOption {
	return func(task *Task) {
		task.StartDate = date
	}
}

func WithEndDate(date Date) TaskOption {
	return func(task *Task) {
		task.EndDate = date
	}
}

// пустой приоритет не затирает текущий - его выставит классификатор
func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

// WithStatusAuto отмечает, кем выбран статус. Явный выбор пользователя фоновые задачи не трогают.
func WithStatusAuto(auto bool) TaskOption {
	return func(task *Task) {
		task.StatusAuto = auto
	}
}
