package task

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Date - необязательная дата. Нулевое значение означает отсутствие даты,
// поэтому потребитель обязан проверять результат Get.
type Date struct {
	t  time.Time
	ok bool
}

func Some(t time.Time) Date {
	return Date{t: t, ok: true}
}

func None() Date {
	return Date{}
}

func (d Date) Get() (time.Time, bool) {
	return d.t, d.ok
}

func (d Date) IsZero() bool {
	return !d.ok
}

func (d Date) Equal(other Date) bool {
	if d.ok != other.ok {
		return false
	}
	return !d.ok || d.t.Equal(other.t)
}

func (d Date) String() string {
	if !d.ok {
		return "N/A"
	}
	return d.t.Format(time.RFC3339)
}

// ParseDate принимает RFC3339 или YYYY-MM-DD, пустая строка - отсутствие даты
func ParseDate(value string) (Date, error) {
	if value == "" {
		return None(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return Some(t), nil
	}
	t, err := time.ParseInLocation(dayLayout, value, time.Local)
	if err != nil {
		return None(), fmt.Errorf("неверный формат даты %q: %w", value, err)
	}
	return Some(t), nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.ok {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.Format(time.RFC3339))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = None()
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("дата должна быть строкой: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan/Value нужны драйверу БД для nullable timestamptz
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = None()
	case time.Time:
		*d = Some(v)
	default:
		return fmt.Errorf("неподдерживаемый тип даты %T", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if !d.ok {
		return nil, nil
	}
	return d.t, nil
}
