package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

// GetProject возвращает проект по идентификатору.
func (r *PostgresRepository) GetProject(ctx context.Context, projectID int64) (*model.Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, budget, overdraft_limit, currency_code, cutoff_time, timezone
		 FROM projects WHERE id = $1`,
		projectID,
	)

	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.BudgetKopecks, &p.OverdraftLimitKopecks,
		&p.CurrencyCode, &p.CutoffTime, &p.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	return &p, nil
}

// DebitBudget атомарно списывает amount копеек с бюджета проекта и создаёт
// запись в леджере. Списание выполняется одним условным UPDATE: два
// конкурентных списания не могут оба пройти, когда запаса хватает лишь
// на одно.
func (r *PostgresRepository) DebitBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	var txn *model.CompanyTransaction
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		txn, err = debitTx(ctx, tx, projectID, amount, description, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditBudget безусловно пополняет бюджет проекта и создаёт запись в леджере.
func (r *PostgresRepository) CreditBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	var txn *model.CompanyTransaction
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		txn, err = creditTx(ctx, tx, projectID, amount, description, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// debitTx выполняет условное списание внутри открытой транзакции.
// Нулевое число затронутых строк означает либо отсутствие проекта, либо
// нехватку средств; уточняющее чтение выполняется уже после того, как
// авторитетный атомарный UPDATE не прошёл.
func debitTx(ctx context.Context, tx pgx.Tx, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	var balanceAfter int64
	err := tx.QueryRow(ctx,
		`UPDATE projects
		 SET budget = budget - $2
		 WHERE id = $1 AND budget + overdraft_limit >= $2
		 RETURNING budget`,
		projectID, amount,
	).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID,
			).Scan(&exists); err != nil {
				return nil, fmt.Errorf("check project exists: %w", err)
			}
			if !exists {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("%w: project %d", ErrInsufficientFunds, projectID)
		}
		return nil, fmt.Errorf("debit budget: %w", err)
	}

	return insertTransaction(ctx, tx, projectID, -amount, balanceAfter, description, orderID)
}

// creditTx выполняет безусловное пополнение внутри открытой транзакции.
func creditTx(ctx context.Context, tx pgx.Tx, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	var balanceAfter int64
	err := tx.QueryRow(ctx,
		`UPDATE projects SET budget = budget + $2 WHERE id = $1 RETURNING budget`,
		projectID, amount,
	).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("credit budget: %w", err)
	}

	return insertTransaction(ctx, tx, projectID, amount, balanceAfter, description, orderID)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, projectID, amount, balanceAfter int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	txn := model.CompanyTransaction{
		Code:                uuid.NewString(),
		ProjectID:           projectID,
		AmountKopecks:       amount,
		BalanceAfterKopecks: balanceAfter,
		Description:         description,
		OrderID:             orderID,
	}

	err := tx.QueryRow(ctx,
		`INSERT INTO company_transactions (code, project_id, amount, balance_after, description, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		txn.Code, txn.ProjectID, txn.AmountKopecks, txn.BalanceAfterKopecks, txn.Description, txn.OrderID,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	return &txn, nil
}

// GetTransactions возвращает историю движений по бюджету проекта,
// новые записи первыми.
func (r *PostgresRepository) GetTransactions(ctx context.Context, projectID int64, limit int) ([]model.CompanyTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, project_id, amount, balance_after, description, order_id, created_at
		 FROM company_transactions
		 WHERE project_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.CompanyTransaction
	for rows.Next() {
		var t model.CompanyTransaction
		if err := rows.Scan(&t.ID, &t.Code, &t.ProjectID, &t.AmountKopecks,
			&t.BalanceAfterKopecks, &t.Description, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
