// Package calendar содержит календарные расчёты: рабочие дни по маске
// сотрудника, границы ISO-недели и проверку дедлайна (cutoff) проекта.
// Все функции чистые, даты трактуются как "полночь UTC".
package calendar

import (
	"fmt"
	"time"
)

// Mask — маска рабочих дней, индекс 0 соответствует понедельнику.
type Mask [7]bool

// DefaultMask — стандартная пятидневка Пн–Пт.
var DefaultMask = Mask{true, true, true, true, true, false, false}

// ParseMask разбирает строку вида "1111100" (Пн..Вс) в маску рабочих дней.
// Пустая строка означает стандартную пятидневку.
func ParseMask(s string) (Mask, error) {
	if s == "" {
		return DefaultMask, nil
	}
	if len(s) != 7 {
		return Mask{}, fmt.Errorf("working days mask must be 7 chars, got %q", s)
	}

	var m Mask
	for i, c := range s {
		switch c {
		case '1':
			m[i] = true
		case '0':
			m[i] = false
		default:
			return Mask{}, fmt.Errorf("working days mask must contain only 0 and 1, got %q", s)
		}
	}
	return m, nil
}

// IsWorkingDay сообщает, является ли дата рабочим днём по маске.
func (m Mask) IsWorkingDay(date time.Time) bool {
	return m[weekdayIndex(date)]
}

// weekdayIndex переводит time.Weekday (Вс=0) в индекс маски (Пн=0).
func weekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// DateOnly обрезает момент времени до даты (полночь UTC).
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CountWorkingDays возвращает количество рабочих дней в диапазоне
// [start, end] включительно. Если start позже end — ноль.
func CountWorkingDays(m Mask, start, end time.Time) int {
	count := 0
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		if m.IsWorkingDay(d) {
			count++
		}
	}
	return count
}

// EnumerateWorkingDays перечисляет рабочие даты диапазона [start, end]
// включительно. Если start позже end — пустой срез, не ошибка.
func EnumerateWorkingDays(m Mask, start, end time.Time) []time.Time {
	var days []time.Time
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		if m.IsWorkingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// WeekBounds возвращает границы ISO-недели (Пн–Вс), содержащей date:
// понедельник этой недели и понедельник следующей (исключающая граница,
// удобно для сравнения timestamp-полей).
func WeekBounds(date time.Time) (monday, nextMonday time.Time) {
	d := DateOnly(date)
	monday = d.AddDate(0, 0, -weekdayIndex(d))
	return monday, monday.AddDate(0, 0, 7)
}

// CutoffPassed сообщает, прошло ли в зоне проекта время дедлайна cutoff
// ("15:04") на текущий момент now. Ошибка разбора зоны или времени
// возвращается вызывающему; тот решает, считать ли дедлайн пройденным.
func CutoffPassed(now time.Time, cutoff, timezone string) (bool, error) {
	if cutoff == "" {
		return false, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	t, err := time.Parse("15:04", cutoff)
	if err != nil {
		return false, fmt.Errorf("parse cutoff time %q: %w", cutoff, err)
	}

	local := now.In(loc)
	deadline := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	return !local.Before(deadline), nil
}
