package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

// GetEmployee возвращает сотрудника по идентификатору.
func (r *PostgresRepository) GetEmployee(ctx context.Context, employeeID int64) (*model.Employee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, project_id, full_name, is_active, is_deleted, service_type, working_days
		 FROM employees WHERE id = $1`,
		employeeID,
	)

	var e model.Employee
	var serviceType string
	err := row.Scan(&e.ID, &e.ProjectID, &e.FullName, &e.IsActive, &e.IsDeleted,
		&serviceType, &e.WorkingDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	e.ServiceType = model.ServiceType(serviceType)

	return &e, nil
}

// lockEmployeeTx блокирует строку сотрудника. Все операции жизненного цикла
// подписки начинаются с этой блокировки, чтобы конкурентные изменения по
// одному сотруднику выполнялись последовательно.
func lockEmployeeTx(ctx context.Context, tx pgx.Tx, employeeID int64) error {
	var dummy int
	err := tx.QueryRow(ctx, `SELECT 1 FROM employees WHERE id = $1 FOR UPDATE`, employeeID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEmployeeNotFound
		}
		return fmt.Errorf("lock employee: %w", err)
	}
	return nil
}

// setEmployeeServiceTypeTx обновляет тип сервиса сотрудника внутри транзакции.
func setEmployeeServiceTypeTx(ctx context.Context, tx pgx.Tx, employeeID int64, serviceType model.ServiceType) error {
	cmd, err := tx.Exec(ctx,
		`UPDATE employees SET service_type = $2 WHERE id = $1`,
		employeeID, string(serviceType),
	)
	if err != nil {
		return fmt.Errorf("update employee service type: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}
