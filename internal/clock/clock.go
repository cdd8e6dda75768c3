// Package clock предоставляет абстракцию текущего времени.
// Сервис получает часы через конструктор, что делает поведение,
// зависящее от дат, воспроизводимым в тестах.
package clock

import "time"

// Clock отдаёт текущий момент времени и текущую дату.
type Clock interface {
	Now() time.Time
	// Today возвращает текущую дату как полночь UTC.
	Today() time.Time
}

// System — часы, читающие реальное время.
type System struct{}

// Now возвращает текущий момент времени.
func (System) Now() time.Time {
	return time.Now()
}

// Today возвращает текущую дату (полночь UTC).
func (System) Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
