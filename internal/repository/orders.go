package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

const orderColumns = `id, employee_id, guest_name, project_id, subscription_id, combo_type,
	price, currency_code, status, order_date, frozen_at, frozen_reason, replacement_order_id, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, combo string
	err := row.Scan(&o.ID, &o.EmployeeID, &o.GuestName, &o.ProjectID, &o.SubscriptionID,
		&combo, &o.PriceKopecks, &o.CurrencyCode, &status, &o.OrderDate,
		&o.FrozenAt, &o.FrozenReason, &o.ReplacementOrderID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.ComboType = model.ComboType(combo)
	return &o, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrdersBySubscription возвращает заказы подписки по возрастанию даты.
func (r *PostgresRepository) GetOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE subscription_id = $1 ORDER BY order_date`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// rowQuerier объединяет пул и транзакцию для запросов одной строки.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CountFrozenInWeek возвращает число замороженных заказов сотрудника,
// у которых момент заморозки попадает в интервал [from, to).
func (r *PostgresRepository) CountFrozenInWeek(ctx context.Context, employeeID int64, from, to time.Time) (int, error) {
	return countFrozenInWeek(ctx, r.pool, employeeID, from, to)
}

func countFrozenInWeek(ctx context.Context, q rowQuerier, employeeID int64, from, to time.Time) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE employee_id = $1 AND status = 'frozen' AND frozen_at >= $2 AND frozen_at < $3`,
		employeeID, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count frozen orders: %w", err)
	}
	return count, nil
}

// insertOrdersTx создаёт по одному активному заказу на каждую дату.
// Даты, на которые у сотрудника уже есть неотменённый заказ, молча
// пропускаются (ON CONFLICT по частичному уникальному индексу), поэтому
// повторный вызов с тем же диапазоном ничего не создаёт.
func insertOrdersTx(ctx context.Context, tx pgx.Tx, sub *model.LunchSubscription, price int64, currency string, dates []time.Time) (int, error) {
	created := 0
	for _, d := range dates {
		cmd, err := tx.Exec(ctx,
			`INSERT INTO orders (employee_id, project_id, subscription_id, combo_type, price, currency_code, status, order_date)
			 VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
			 ON CONFLICT (employee_id, order_date) WHERE status <> 'cancelled' DO NOTHING`,
			sub.EmployeeID, sub.ProjectID, sub.ID, string(sub.ComboType), price, currency, d,
		)
		if err != nil {
			return 0, fmt.Errorf("insert order for %s: %w", d.Format("2006-01-02"), err)
		}
		created += int(cmd.RowsAffected())
	}
	return created, nil
}

// cancelFutureTx отменяет будущие заказы сотрудника. Отменяются активные,
// приостановленные и замороженные заказы; в сумму возврата входят только
// активные и приостановленные — деньги замороженного заказа несёт его
// заказ-замена, который отменяется здесь же.
func cancelFutureTx(ctx context.Context, tx pgx.Tx, employeeID int64, fromDate time.Time) (int, int64, error) {
	var count int
	var refund int64
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(price), 0) FROM orders
		 WHERE employee_id = $1 AND order_date >= $2 AND status IN ('active', 'paused')`,
		employeeID, fromDate,
	).Scan(&count, &refund)
	if err != nil {
		return 0, 0, fmt.Errorf("sum future orders: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = 'cancelled'
		 WHERE employee_id = $1 AND order_date >= $2 AND status IN ('active', 'paused', 'frozen')`,
		employeeID, fromDate,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("cancel future orders: %w", err)
	}

	return count, refund, nil
}

// repriceFutureTx меняет комбо и цену будущих заказов сотрудника и
// возвращает число обновлённых заказов и суммарную разницу в цене.
// Замороженные заказы не переоцениваются: их деньги несёт заказ-замена.
func repriceFutureTx(ctx context.Context, tx pgx.Tx, employeeID int64, combo model.ComboType, newPrice int64, fromDate time.Time) (int, int64, error) {
	var count int
	var oldSum int64
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(price), 0) FROM orders
		 WHERE employee_id = $1 AND order_date >= $2 AND status IN ('active', 'paused')`,
		employeeID, fromDate,
	).Scan(&count, &oldSum)
	if err != nil {
		return 0, 0, fmt.Errorf("sum future orders: %w", err)
	}

	if count == 0 {
		return 0, 0, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET combo_type = $3, price = $4
		 WHERE employee_id = $1 AND order_date >= $2 AND status IN ('active', 'paused')`,
		employeeID, fromDate, string(combo), newPrice,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("reprice future orders: %w", err)
	}

	delta := newPrice*int64(count) - oldSum
	return count, delta, nil
}

// recomputeTotalsTx пересчитывает производные поля подписки по фактическому
// набору заказов. TotalDays и TotalPrice учитывают заказы, которые будут
// (или были) выданы: активные, приостановленные и доставленные; замороженный
// заказ не считается — его день несёт заказ-замена. RemainingDays — будущие
// активные и замороженные заказы.
func recomputeTotalsTx(ctx context.Context, tx pgx.Tx, sub *model.LunchSubscription, today time.Time) (totalDays int, totalPrice int64, remainingDays int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status IN ('active', 'paused', 'delivered')),
			COALESCE(SUM(price) FILTER (WHERE status IN ('active', 'paused', 'delivered')), 0),
			COUNT(*) FILTER (WHERE status IN ('active', 'frozen') AND order_date >= $4)
		 FROM orders
		 WHERE employee_id = $1 AND order_date BETWEEN $2 AND $3`,
		sub.EmployeeID, sub.StartDate, sub.EndDate, today,
	).Scan(&totalDays, &totalPrice, &remainingDays)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("recompute totals: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE lunch_subscriptions SET total_days = $2, total_price = $3, updated_at = now() WHERE id = $1`,
		sub.ID, totalDays, totalPrice,
	)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("store totals: %w", err)
	}

	return totalDays, totalPrice, remainingDays, nil
}

// CreateGuestOrder создаёт разовый гостевой заказ и списывает его стоимость
// с бюджета проекта в той же транзакции.
func (r *PostgresRepository) CreateGuestOrder(ctx context.Context, projectID int64, guestName string, combo model.ComboType, price int64, currency string, date time.Time, description string) (*model.Order, error) {
	var order *model.Order
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = scanOrder(tx.QueryRow(ctx,
			`INSERT INTO orders (guest_name, project_id, combo_type, price, currency_code, status, order_date)
			 VALUES ($1, $2, $3, $4, $5, 'active', $6)
			 RETURNING `+orderColumns,
			guestName, projectID, string(combo), price, currency, date,
		))
		if err != nil {
			return fmt.Errorf("insert guest order: %w", err)
		}

		_, err = debitTx(ctx, tx, projectID, price, description, &order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelGuestOrder отменяет будущий гостевой заказ и возвращает его
// стоимость в бюджет проекта.
func (r *PostgresRepository) CancelGuestOrder(ctx context.Context, orderID int64, today time.Time, description string) (*model.Order, error) {
	var order *model.Order
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get guest order: %w", err)
		}

		if !order.IsGuest() {
			return fmt.Errorf("%w: order %d is not a guest order", ErrWrongStatus, orderID)
		}
		if order.Status != model.OrderActive {
			return fmt.Errorf("%w: order %d is %s", ErrWrongStatus, orderID, order.Status)
		}
		if order.OrderDate.Before(today) {
			return fmt.Errorf("%w: order %d is in the past", ErrWrongStatus, orderID)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = 'cancelled' WHERE id = $1`, orderID); err != nil {
			return fmt.Errorf("cancel guest order: %w", err)
		}
		order.Status = model.OrderCancelled

		_, err = creditTx(ctx, tx, order.ProjectID, order.PriceKopecks, description, &order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
