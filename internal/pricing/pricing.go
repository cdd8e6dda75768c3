// Package pricing содержит таблицу цен обеденных комбо.
// Таблица передаётся в сервис явно, а не читается из глобального состояния,
// чтобы ценозависимое поведение было детерминированным в тестах.
package pricing

import (
	"fmt"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

// Table сопоставляет тип комбо его цене в копейках.
type Table map[model.ComboType]int64

// DefaultTable возвращает стандартную таблицу цен.
func DefaultTable() Table {
	return Table{
		model.Combo25: 2500,
		model.Combo35: 3500,
	}
}

// Price возвращает цену комбо в копейках.
func (t Table) Price(combo model.ComboType) (int64, error) {
	price, ok := t[combo]
	if !ok {
		return 0, fmt.Errorf("unknown combo type %q", combo)
	}
	return price, nil
}
