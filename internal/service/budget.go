package service

import (
	"context"
	"fmt"
	"time"

	"github.com/azamatrasuli/business-crm-sub000/internal/audit"
	"github.com/azamatrasuli/business-crm-sub000/internal/calendar"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

// GetBudget возвращает состояние бюджета проекта.
func (s *Service) GetBudget(ctx context.Context, projectID int64) (*model.Budget, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &model.Budget{
		Balance:   toUnits(project.BudgetKopecks),
		Overdraft: toUnits(project.OverdraftLimitKopecks),
		Available: toUnits(project.BudgetKopecks + project.OverdraftLimitKopecks),
	}, nil
}

// GetTransactions возвращает историю движений по бюджету проекта.
func (s *Service) GetTransactions(ctx context.Context, projectID int64, limit int) ([]model.CompanyTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.GetTransactions(ctx, projectID, limit)
}

// DebitBudget списывает сумму с бюджета проекта. Сумма в рублях.
func (s *Service) DebitBudget(ctx context.Context, projectID int64, amount float64, description string) (*model.CompanyTransaction, error) {
	kopecks := toKopecks(amount)
	if kopecks <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %.2f", amount)
	}
	return s.repo.DebitBudget(ctx, projectID, kopecks, description, nil)
}

// CreditBudget пополняет бюджет проекта. Сумма в рублях.
func (s *Service) CreditBudget(ctx context.Context, projectID int64, amount float64, description string) (*model.CompanyTransaction, error) {
	kopecks := toKopecks(amount)
	if kopecks <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %.2f", amount)
	}
	return s.repo.CreditBudget(ctx, projectID, kopecks, description, nil)
}

// CreateGuestOrder создаёт разовый гостевой заказ за счёт бюджета проекта.
func (s *Service) CreateGuestOrder(ctx context.Context, projectID int64, guestName string, combo model.ComboType, date time.Time, actorID *int64) (*model.Order, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	price, err := s.prices.Price(combo)
	if err != nil {
		return nil, err
	}

	day := calendar.DateOnly(date)
	if day.Before(s.clock.Today()) {
		return nil, fmt.Errorf("%w: guest order date %s", ErrPastDate, day.Format("2006-01-02"))
	}

	order, err := s.repo.CreateGuestOrder(ctx, projectID, guestName, combo, price, project.CurrencyCode, day,
		fmt.Sprintf("Гостевой заказ: %s, %s", guestName, day.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "guest_order_created",
		EntityType: "order",
		EntityID:   &order.ID,
		NewValue:   fmt.Sprintf("guest=%s combo=%s date=%s", guestName, combo, day.Format("2006-01-02")),
	})

	return order, nil
}

// CancelGuestOrder отменяет будущий гостевой заказ с возвратом средств
// в бюджет проекта.
func (s *Service) CancelGuestOrder(ctx context.Context, orderID int64, actorID *int64) (*model.Order, error) {
	order, err := s.repo.CancelGuestOrder(ctx, orderID, s.clock.Today(),
		fmt.Sprintf("Возврат за отменённый гостевой заказ %d", orderID))
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "guest_order_cancelled",
		EntityType: "order",
		EntityID:   &order.ID,
		NewValue:   fmt.Sprintf("refund=%.2f", toUnits(order.PriceKopecks)),
	})

	return order, nil
}

// PayCompensation проводит компенсационную выплату сотруднику с типом
// сервиса compensation. Повторы внешних ретраев отсекаются по ключу
// идемпотентности (сотрудник, сумма, день, назначение).
func (s *Service) PayCompensation(ctx context.Context, employeeID int64, amount float64, description string, actorID *int64) (*model.CompanyTransaction, error) {
	kopecks := toKopecks(amount)
	if kopecks <= 0 {
		return nil, fmt.Errorf("compensation amount must be positive, got %.2f", amount)
	}

	employee, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee.IsDeleted || !employee.IsActive {
		return nil, fmt.Errorf("%w: employee %d", ErrEmployeeInactive, employeeID)
	}
	if employee.ServiceType != model.ServiceTypeCompensation {
		return nil, fmt.Errorf("%w: employee %d has service type %q, compensation required",
			ErrWrongServiceType, employeeID, employee.ServiceType)
	}
	if employee.ProjectID == nil {
		return nil, fmt.Errorf("%w: employee %d", ErrNoProject, employeeID)
	}

	key := fmt.Sprintf("comp:%d:%d:%s:%s", employeeID, kopecks,
		s.clock.Today().Format("2006-01-02"), description)

	var txn *model.CompanyTransaction
	err = s.idem.ExecuteOnce(ctx, key, compensationDedupTTL, func(ctx context.Context) error {
		var err error
		txn, err = s.repo.DebitBudget(ctx, *employee.ProjectID, kopecks,
			fmt.Sprintf("Компенсация питания, сотрудник %d: %s", employeeID, description), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "compensation_paid",
		EntityType: "employee",
		EntityID:   &employeeID,
		NewValue:   fmt.Sprintf("amount=%.2f description=%s", amount, description),
	})

	return txn, nil
}
