// Package audit содержит журнал аудита: интерфейс приёмника событий и
// реализацию поверх PostgreSQL. Запись событий — fire-and-forget: ядро
// вызывает Record после каждого перехода состояния, но не зависит от
// результата.
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event описывает одно событие аудита.
type Event struct {
	ActorID    *int64
	Action     string
	EntityType string
	EntityID   *int64
	OldValue   string
	NewValue   string
}

// Sink принимает события аудита.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// PostgresSink пишет события аудита в таблицу audit_log.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink создаёт приёмник аудита поверх пула соединений.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Record добавляет запись в журнал аудита.
func (s *PostgresSink) Record(ctx context.Context, e Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (actor_id, action, entity_type, entity_id, old_value, new_value)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.Action, e.EntityType, e.EntityID, e.OldValue, e.NewValue,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Nop — приёмник, отбрасывающий события. Используется в тестах.
type Nop struct{}

// Record ничего не делает.
func (Nop) Record(ctx context.Context, e Event) error {
	return nil
}
