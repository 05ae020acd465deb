package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"taskPrioritizer/internal/models/task"
)

const maxTitleLength = 255
const minPasswordLength = 6

func validateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "обязательное поле")
	}
	if field == "title" && utf8.RuneCountInString(value) > maxTitleLength {
		return NewValidationError(field, "слишком длинное значение")
	}
	return nil
}

func validateDates(start, end task.Date) error {
	s, okStart := start.Get()
	e, okEnd := end.Get()
	if okStart && okEnd && e.Before(s) {
		return NewValidationError("end_date", "срок раньше даты начала")
	}
	return nil
}

func validateClassification(priority task.Priority, status task.Status) error {
	if priority != "" && !priority.Valid() {
		return NewValidationError("priority", "допустимые значения: low, medium, high")
	}
	if status != "" && !status.Valid() {
		return NewValidationError("status", "допустимые значения: pending, in_progress, completed")
	}
	return nil
}

func validateDraft(d task.Draft) error {
	if err := validateText("title", d.Title); err != nil {
		return err
	}
	if err := validateText("description", d.Description); err != nil {
		return err
	}
	if err := validateDates(d.StartDate, d.EndDate); err != nil {
		return err
	}
	return validateClassification(d.Priority, d.Status)
}

func validatePatch(p task.Patch) error {
	if p.Title != nil {
		if err := validateText("title", *p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateText("description", *p.Description); err != nil {
			return err
		}
	}
	var priority task.Priority
	var status task.Status
	if p.Priority != nil {
		priority = *p.Priority
	}
	if p.Status != nil {
		status = *p.Status
	}
	return validateClassification(priority, status)
}

func validateCredentials(email, password string) error {
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return NewValidationError("email", "неверный адрес")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return NewValidationError("password", "минимум 6 символов")
	}
	return nil
}
