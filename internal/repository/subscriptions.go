package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

const subscriptionColumns = `id, employee_id, project_id, combo_type, status, is_active,
	start_date, end_date, original_end_date, schedule_type, frozen_days_count,
	paused_at, paused_days_count, total_days, total_price, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.LunchSubscription, error) {
	var s model.LunchSubscription
	var combo, status, schedule string
	err := row.Scan(&s.ID, &s.EmployeeID, &s.ProjectID, &combo, &status, &s.IsActive,
		&s.StartDate, &s.EndDate, &s.OriginalEndDate, &schedule, &s.FrozenDaysCount,
		&s.PausedAt, &s.PausedDaysCount, &s.TotalDays, &s.TotalPriceKopecks,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ComboType = model.ComboType(combo)
	s.Status = model.SubscriptionStatus(status)
	s.ScheduleType = model.ScheduleType(schedule)
	return &s, nil
}

// GetSubscription возвращает подписку по идентификатору.
func (r *PostgresRepository) GetSubscription(ctx context.Context, subscriptionID int64) (*model.LunchSubscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM lunch_subscriptions WHERE id = $1`, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// GetSubscriptionByEmployee возвращает последнюю подписку сотрудника.
func (r *PostgresRepository) GetSubscriptionByEmployee(ctx context.Context, employeeID int64) (*model.LunchSubscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM lunch_subscriptions
		 WHERE employee_id = $1 ORDER BY id DESC LIMIT 1`, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription by employee: %w", err)
	}
	return s, nil
}

// lockLifecycleTx берёт блокировки жизненного цикла в едином порядке:
// сначала строка сотрудника, затем строка подписки. Тот же порядок
// использует создание и повторная активация подписки, поэтому конкурентные
// операции по одному сотруднику выстраиваются в очередь без взаимных
// блокировок. employee_id подписки неизменяем, поэтому предварительное
// чтение без блокировки безопасно.
func lockLifecycleTx(ctx context.Context, tx pgx.Tx, subscriptionID int64) (*model.LunchSubscription, error) {
	var employeeID int64
	err := tx.QueryRow(ctx,
		`SELECT employee_id FROM lunch_subscriptions WHERE id = $1`, subscriptionID,
	).Scan(&employeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription employee: %w", err)
	}

	if err := lockEmployeeTx(ctx, tx, employeeID); err != nil {
		return nil, err
	}

	return lockSubscriptionTx(ctx, tx, subscriptionID)
}

// lockSubscriptionTx читает строку подписки под блокировкой FOR UPDATE.
// Вызывается только после блокировки строки сотрудника (lockLifecycleTx).
func lockSubscriptionTx(ctx context.Context, tx pgx.Tx, subscriptionID int64) (*model.LunchSubscription, error) {
	s, err := scanSubscription(tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM lunch_subscriptions WHERE id = $1 FOR UPDATE`,
		subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("lock subscription: %w", err)
	}
	return s, nil
}

// CreateSubscriptionParams описывает создание подписки. Даты заказов уже
// спланированы сервисом по календарю рабочих дней.
type CreateSubscriptionParams struct {
	EmployeeID   int64
	ProjectID    int64
	ComboType    model.ComboType
	PriceKopecks int64
	CurrencyCode string
	ScheduleType model.ScheduleType
	StartDate    time.Time
	EndDate      time.Time
	OrderDates   []time.Time
	Today        time.Time
	Description  string
}

// CreateSubscription создаёт подписку, заказы на каждую дату и списывает
// их стоимость с бюджета проекта — всё в одной транзакции. Если не
// создалось ни одного заказа или бюджета не хватило, транзакция
// откатывается целиком.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*model.LunchSubscription, error) {
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockEmployeeTx(ctx, tx, p.EmployeeID); err != nil {
			return err
		}

		var err error
		sub, err = scanSubscription(tx.QueryRow(ctx,
			`INSERT INTO lunch_subscriptions
			 (employee_id, project_id, combo_type, status, is_active, start_date, end_date, original_end_date, schedule_type)
			 VALUES ($1, $2, $3, 'active', TRUE, $4, $5, $5, $6)
			 RETURNING `+subscriptionColumns,
			p.EmployeeID, p.ProjectID, string(p.ComboType), p.StartDate, p.EndDate, string(p.ScheduleType),
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: employee %d", ErrDuplicateSubscription, p.EmployeeID)
			}
			return fmt.Errorf("insert subscription: %w", err)
		}

		return r.fillSubscriptionTx(ctx, tx, sub, p)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// fillSubscriptionTx — общая часть создания и повторной активации: заказы,
// тип сервиса сотрудника, списание бюджета и пересчёт итогов.
func (r *PostgresRepository) fillSubscriptionTx(ctx context.Context, tx pgx.Tx, sub *model.LunchSubscription, p CreateSubscriptionParams) error {
	created, err := insertOrdersTx(ctx, tx, sub, p.PriceKopecks, p.CurrencyCode, p.OrderDates)
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("%w: employee %d, %s..%s", ErrNoOrdersCreated, p.EmployeeID,
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	}

	if _, err := tx.Exec(ctx,
		`UPDATE employees SET service_type = 'lunch' WHERE id = $1 AND service_type = ''`,
		p.EmployeeID); err != nil {
		return fmt.Errorf("set employee service type: %w", err)
	}

	if _, err := debitTx(ctx, tx, p.ProjectID, p.PriceKopecks*int64(created), p.Description, nil); err != nil {
		return err
	}

	totalDays, totalPrice, _, err := recomputeTotalsTx(ctx, tx, sub, p.Today)
	if err != nil {
		return err
	}
	sub.TotalDays = totalDays
	sub.TotalPriceKopecks = totalPrice
	return nil
}

// ReactivateSubscription повторно активирует завершённую подписку: строка
// переиспользуется, период и заказы рассчитываются заново по новому запросу.
func (r *PostgresRepository) ReactivateSubscription(ctx context.Context, subscriptionID int64, p CreateSubscriptionParams) (*model.LunchSubscription, error) {
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockEmployeeTx(ctx, tx, p.EmployeeID); err != nil {
			return err
		}

		old, err := lockSubscriptionTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if old.Status != model.SubscriptionCompleted {
			return fmt.Errorf("%w: subscription %d is %s, reactivation needs completed", ErrWrongStatus, subscriptionID, old.Status)
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET
				combo_type = $2, status = 'active', is_active = TRUE,
				start_date = $3, end_date = $4, original_end_date = $4,
				schedule_type = $5, frozen_days_count = 0,
				paused_at = NULL, paused_days_count = 0, updated_at = now()
			 WHERE id = $1
			 RETURNING `+subscriptionColumns,
			subscriptionID, string(p.ComboType), p.StartDate, p.EndDate, string(p.ScheduleType),
		))
		if err != nil {
			return fmt.Errorf("reactivate subscription: %w", err)
		}

		return r.fillSubscriptionTx(ctx, tx, sub, p)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ChangeCombo меняет комбо подписки, переоценивает будущие заказы и
// проводит разницу через бюджетный леджер: доплата списывается условным
// UPDATE и может не пройти по средствам, удешевление возвращается в бюджет.
func (r *PostgresRepository) ChangeCombo(ctx context.Context, subscriptionID int64, combo model.ComboType, newPrice int64, today time.Time, description string) (*model.LunchSubscription, int64, error) {
	var sub *model.LunchSubscription
	var delta int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = lockLifecycleTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubscriptionActive && sub.Status != model.SubscriptionPaused {
			return fmt.Errorf("%w: subscription %d is %s", ErrWrongStatus, subscriptionID, sub.Status)
		}

		var updated int
		updated, delta, err = repriceFutureTx(ctx, tx, sub.EmployeeID, combo, newPrice, today)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE lunch_subscriptions SET combo_type = $2, updated_at = now() WHERE id = $1`,
			subscriptionID, string(combo)); err != nil {
			return fmt.Errorf("update subscription combo: %w", err)
		}
		sub.ComboType = combo

		if updated > 0 && delta != 0 {
			if delta > 0 {
				if _, err := debitTx(ctx, tx, sub.ProjectID, delta, description, nil); err != nil {
					return err
				}
			} else {
				if _, err := creditTx(ctx, tx, sub.ProjectID, -delta, description, nil); err != nil {
					return err
				}
			}
		}

		totalDays, totalPrice, _, err := recomputeTotalsTx(ctx, tx, sub, today)
		if err != nil {
			return err
		}
		sub.TotalDays = totalDays
		sub.TotalPriceKopecks = totalPrice
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return sub, delta, nil
}

// PauseSubscription приостанавливает подписку: будущие активные заказы
// переводятся в paused, деньги остаются зарезервированными.
func (r *PostgresRepository) PauseSubscription(ctx context.Context, subscriptionID int64, now, today time.Time) (*model.LunchSubscription, error) {
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = lockLifecycleTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubscriptionActive {
			return fmt.Errorf("%w: subscription %d is %s, pause needs active", ErrWrongStatus, subscriptionID, sub.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = 'paused'
			 WHERE employee_id = $1 AND order_date >= $2 AND status = 'active'`,
			sub.EmployeeID, today); err != nil {
			return fmt.Errorf("pause orders: %w", err)
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET status = 'paused', paused_at = $2, updated_at = now()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			subscriptionID, now,
		))
		if err != nil {
			return fmt.Errorf("pause subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ResumeSubscription возобновляет приостановленную подписку: окно подписки
// сдвигается на число дней паузы, приостановленные заказы снова активны.
func (r *PostgresRepository) ResumeSubscription(ctx context.Context, subscriptionID int64, today time.Time) (*model.LunchSubscription, error) {
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = lockLifecycleTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubscriptionPaused || sub.PausedAt == nil {
			return fmt.Errorf("%w: subscription %d is %s, resume needs paused", ErrWrongStatus, subscriptionID, sub.Status)
		}

		pausedFrom := time.Date(sub.PausedAt.Year(), sub.PausedAt.Month(), sub.PausedAt.Day(), 0, 0, 0, 0, time.UTC)
		pausedDays := int(today.Sub(pausedFrom).Hours() / 24)
		if pausedDays < 0 {
			pausedDays = 0
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = 'active' WHERE employee_id = $1 AND status = 'paused'`,
			sub.EmployeeID); err != nil {
			return fmt.Errorf("resume orders: %w", err)
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET
				status = 'active', paused_at = NULL,
				end_date = end_date + $2::int,
				paused_days_count = paused_days_count + $2, updated_at = now()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			subscriptionID, pausedDays,
		))
		if err != nil {
			return fmt.Errorf("resume subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// FreezeOrderParams описывает заморозку одного заказа. WeeklyLimit и границы
// недели [WeekStart, WeekEnd) нужны для авторитетной проверки лимита внутри
// транзакции; нулевой WeeklyLimit отключает проверку.
type FreezeOrderParams struct {
	OrderID     int64
	FrozenAt    time.Time
	Reason      string
	Today       time.Time
	WeeklyLimit int
	WeekStart   time.Time
	WeekEnd     time.Time
}

// checkFreezeLimitTx — авторитетная проверка недельного лимита заморозок.
// Выполняется под блокировкой строки сотрудника, поэтому две конкурентные
// заморозки не могут обе пройти проверку по одному и тому же остатку.
func checkFreezeLimitTx(ctx context.Context, tx pgx.Tx, employeeID int64, p FreezeOrderParams) error {
	if p.WeeklyLimit <= 0 {
		return nil
	}

	used, err := countFrozenInWeek(ctx, tx, employeeID, p.WeekStart, p.WeekEnd)
	if err != nil {
		return err
	}
	if used >= p.WeeklyLimit {
		return fmt.Errorf("%w: %d of %d used in week of %s",
			ErrFreezeLimitExceeded, used, p.WeeklyLimit, p.WeekStart.Format("2006-01-02"))
	}
	return nil
}

// FreezeOrder замораживает заказ: заказ получает статус frozen, окно
// подписки продлевается на один календарный день, и на новую дату окончания
// в той же транзакции создаётся активный заказ-замена.
func (r *PostgresRepository) FreezeOrder(ctx context.Context, p FreezeOrderParams) (*model.Order, *model.LunchSubscription, error) {
	var replacement *model.Order
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		order, err := r.GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if order.SubscriptionID == nil || order.IsGuest() {
			return fmt.Errorf("%w: order %d is not a subscription order", ErrWrongStatus, p.OrderID)
		}

		// Единый порядок блокировок: сотрудник, затем подписка, затем заказ.
		if err := lockEmployeeTx(ctx, tx, *order.EmployeeID); err != nil {
			return err
		}
		sub, err = lockSubscriptionTx(ctx, tx, *order.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubscriptionActive {
			return fmt.Errorf("%w: subscription %d is %s, freeze needs active", ErrWrongStatus, sub.ID, sub.Status)
		}

		if err := checkFreezeLimitTx(ctx, tx, *order.EmployeeID, p); err != nil {
			return err
		}

		order, err = scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID))
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.Status != model.OrderActive {
			return fmt.Errorf("%w: order %d is %s, freeze needs active", ErrWrongStatus, p.OrderID, order.Status)
		}

		// TODO: уточнить у продукта, должен ли день-замена переноситься на
		// ближайший рабочий день, а не просто на end_date + 1 календарный.
		newEnd := sub.EndDate.AddDate(0, 0, 1)

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = 'frozen', frozen_at = $2, frozen_reason = $3 WHERE id = $1`,
			p.OrderID, p.FrozenAt, p.Reason); err != nil {
			return fmt.Errorf("freeze order: %w", err)
		}

		replacement, err = scanOrder(tx.QueryRow(ctx,
			`INSERT INTO orders (employee_id, project_id, subscription_id, combo_type, price, currency_code, status, order_date)
			 VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
			 RETURNING `+orderColumns,
			sub.EmployeeID, order.ProjectID, sub.ID, string(order.ComboType),
			order.PriceKopecks, order.CurrencyCode, newEnd,
		))
		if err != nil {
			return fmt.Errorf("insert replacement order: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET replacement_order_id = $2 WHERE id = $1`,
			p.OrderID, replacement.ID); err != nil {
			return fmt.Errorf("link replacement order: %w", err)
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET end_date = $2, frozen_days_count = frozen_days_count + 1, updated_at = now()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			sub.ID, newEnd,
		))
		if err != nil {
			return fmt.Errorf("extend subscription: %w", err)
		}

		totalDays, totalPrice, _, err := recomputeTotalsTx(ctx, tx, sub, p.Today)
		if err != nil {
			return err
		}
		sub.TotalDays = totalDays
		sub.TotalPriceKopecks = totalPrice
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return replacement, sub, nil
}

// UnfreezeOrder отменяет заморозку: заказ-замена удаляется, исходный заказ
// снова активен, окно подписки сокращается на один день.
func (r *PostgresRepository) UnfreezeOrder(ctx context.Context, orderID int64, today time.Time) (*model.Order, *model.LunchSubscription, error) {
	var order *model.Order
	var sub *model.LunchSubscription
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = r.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.SubscriptionID == nil {
			return fmt.Errorf("%w: order %d is not a subscription order", ErrWrongStatus, orderID)
		}

		if err := lockEmployeeTx(ctx, tx, *order.EmployeeID); err != nil {
			return err
		}
		sub, err = lockSubscriptionTx(ctx, tx, *order.SubscriptionID)
		if err != nil {
			return err
		}

		order, err = scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.Status != model.OrderFrozen {
			return fmt.Errorf("%w: order %d is %s, unfreeze needs frozen", ErrWrongStatus, orderID, order.Status)
		}

		if order.ReplacementOrderID != nil {
			if _, err := tx.Exec(ctx,
				`DELETE FROM orders WHERE id = $1`, *order.ReplacementOrderID); err != nil {
				return fmt.Errorf("delete replacement order: %w", err)
			}
		}

		order, err = scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = 'active', frozen_at = NULL, frozen_reason = '', replacement_order_id = NULL
			 WHERE id = $1 RETURNING `+orderColumns,
			orderID,
		))
		if err != nil {
			return fmt.Errorf("unfreeze order: %w", err)
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET end_date = end_date - 1, frozen_days_count = frozen_days_count - 1, updated_at = now()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			sub.ID,
		))
		if err != nil {
			return fmt.Errorf("shrink subscription: %w", err)
		}

		totalDays, totalPrice, _, err := recomputeTotalsTx(ctx, tx, sub, today)
		if err != nil {
			return err
		}
		sub.TotalDays = totalDays
		sub.TotalPriceKopecks = totalPrice
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, sub, nil
}

// DeactivateSubscription завершает подписку: будущие заказы отменяются,
// их стоимость возвращается в бюджет проекта, тип сервиса сотрудника
// сбрасывается. Сбой возврата средств откатывает и отмену заказов.
func (r *PostgresRepository) DeactivateSubscription(ctx context.Context, subscriptionID int64, today time.Time, description string) (*model.LunchSubscription, int, int64, error) {
	var sub *model.LunchSubscription
	var cancelled int
	var refund int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = lockLifecycleTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == model.SubscriptionCompleted {
			return fmt.Errorf("%w: subscription %d already completed", ErrWrongStatus, subscriptionID)
		}

		cancelled, refund, err = cancelFutureTx(ctx, tx, sub.EmployeeID, today)
		if err != nil {
			return err
		}

		if refund > 0 {
			if _, err := creditTx(ctx, tx, sub.ProjectID, refund, description, nil); err != nil {
				return err
			}
		}

		if err := setEmployeeServiceTypeTx(ctx, tx, sub.EmployeeID, model.ServiceTypeNone); err != nil {
			return err
		}

		sub, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE lunch_subscriptions SET status = 'completed', is_active = FALSE, paused_at = NULL, updated_at = now()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			subscriptionID,
		))
		if err != nil {
			return fmt.Errorf("complete subscription: %w", err)
		}

		totalDays, totalPrice, _, err := recomputeTotalsTx(ctx, tx, sub, today)
		if err != nil {
			return err
		}
		sub.TotalDays = totalDays
		sub.TotalPriceKopecks = totalPrice
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return sub, cancelled, refund, nil
}

// RecomputeSubscriptionTotals пересчитывает производные поля подписки и
// возвращает их вместе с числом оставшихся дней.
func (r *PostgresRepository) RecomputeSubscriptionTotals(ctx context.Context, subscriptionID int64, today time.Time) (totalDays int, totalPrice int64, remainingDays int, err error) {
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		sub, err := lockLifecycleTx(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		totalDays, totalPrice, remainingDays, err = recomputeTotalsTx(ctx, tx, sub, today)
		return err
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return totalDays, totalPrice, remainingDays, nil
}
