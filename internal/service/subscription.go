package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/azamatrasuli/business-crm-sub000/internal/audit"
	"github.com/azamatrasuli/business-crm-sub000/internal/calendar"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
)

// SubscriptionRequest описывает запрос на создание или повторную активацию
// подписки. Для расписания custom даты передаются явно, иначе период
// задаётся диапазоном [StartDate, EndDate].
type SubscriptionRequest struct {
	EmployeeID   int64
	ComboType    model.ComboType
	ScheduleType model.ScheduleType
	StartDate    time.Time
	EndDate      time.Time
	CustomDates  []time.Time
	ActorID      *int64
}

// SubscriptionDetails — подписка вместе с её заказами для отдачи наружу.
type SubscriptionDetails struct {
	Subscription *model.LunchSubscription
	Orders       []model.Order
}

// planSubscription проверяет предусловия и планирует даты заказов.
// Все проверки выполняются до каких-либо изменений (fail fast);
// авторитетная проверка бюджета — атомарное списание внутри транзакции.
func (s *Service) planSubscription(ctx context.Context, req SubscriptionRequest) (repository.CreateSubscriptionParams, error) {
	var p repository.CreateSubscriptionParams

	employee, err := s.repo.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return p, err
	}
	if employee.IsDeleted || !employee.IsActive {
		return p, fmt.Errorf("%w: employee %d", ErrEmployeeInactive, req.EmployeeID)
	}
	if employee.ServiceType != model.ServiceTypeNone && employee.ServiceType != model.ServiceTypeLunch {
		return p, fmt.Errorf("%w: employee %d has service type %q", ErrWrongServiceType, req.EmployeeID, employee.ServiceType)
	}
	if employee.ProjectID == nil {
		return p, fmt.Errorf("%w: employee %d", ErrNoProject, req.EmployeeID)
	}

	project, err := s.repo.GetProject(ctx, *employee.ProjectID)
	if err != nil {
		return p, err
	}

	price, err := s.prices.Price(req.ComboType)
	if err != nil {
		return p, err
	}

	mask, err := calendar.ParseMask(employee.WorkingDays)
	if err != nil {
		return p, err
	}

	today := s.clock.Today()

	schedule := req.ScheduleType
	switch schedule {
	case model.ScheduleEveryOtherDay:
		// Легаси-расписание "через день" давно не продаётся,
		// старые запросы нормализуются в ежедневное.
		schedule = model.ScheduleEveryDay
	case "":
		schedule = model.ScheduleEveryDay
	}

	var start, end time.Time
	var dates []time.Time
	if schedule == model.ScheduleCustom {
		// Прошедшие даты молча пропускаются.
		for _, d := range req.CustomDates {
			if d := calendar.DateOnly(d); !d.Before(today) {
				dates = append(dates, d)
			}
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		if len(dates) == 0 {
			return p, fmt.Errorf("%w: employee %d", ErrEmptyPeriod, req.EmployeeID)
		}
		start, end = dates[0], dates[len(dates)-1]
	} else {
		start = calendar.DateOnly(req.StartDate)
		end = calendar.DateOnly(req.EndDate)
		if start.Before(today) {
			return p, fmt.Errorf("%w: start %s", ErrPastDate, start.Format("2006-01-02"))
		}
		dates = calendar.EnumerateWorkingDays(mask, start, end)
		if len(dates) == 0 {
			return p, fmt.Errorf("%w: %s..%s", ErrEmptyPeriod, start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	}

	required := price * int64(len(dates))
	available := project.BudgetKopecks + project.OverdraftLimitKopecks
	if required > available {
		return p, fmt.Errorf("%w: required %.2f, available %.2f", ErrInsufficientBudget,
			toUnits(required), toUnits(available))
	}

	return repository.CreateSubscriptionParams{
		EmployeeID:   req.EmployeeID,
		ProjectID:    *employee.ProjectID,
		ComboType:    req.ComboType,
		PriceKopecks: price,
		CurrencyCode: project.CurrencyCode,
		ScheduleType: schedule,
		StartDate:    start,
		EndDate:      end,
		OrderDates:   dates,
		Today:        today,
		Description:  fmt.Sprintf("Оформление подписки на обеды, сотрудник %d", req.EmployeeID),
	}, nil
}

// CreateSubscription оформляет новую подписку сотрудника.
func (s *Service) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*model.LunchSubscription, error) {
	existing, err := s.repo.GetSubscriptionByEmployee(ctx, req.EmployeeID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != model.SubscriptionCompleted {
		return nil, fmt.Errorf("%w: employee %d, subscription %d", repository.ErrDuplicateSubscription, req.EmployeeID, existing.ID)
	}

	p, err := s.planSubscription(ctx, req)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.CreateSubscription(ctx, p)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    req.ActorID,
		Action:     "subscription_created",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		NewValue: fmt.Sprintf("combo=%s period=%s..%s days=%d", sub.ComboType,
			sub.StartDate.Format("2006-01-02"), sub.EndDate.Format("2006-01-02"), sub.TotalDays),
	})

	return sub, nil
}

// ReactivateSubscription повторно активирует завершённую подписку
// сотрудника, переиспользуя существующую строку и рассчитывая период,
// заказы и стоимость заново.
func (s *Service) ReactivateSubscription(ctx context.Context, req SubscriptionRequest) (*model.LunchSubscription, error) {
	existing, err := s.repo.GetSubscriptionByEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if existing.Status != model.SubscriptionCompleted {
		return nil, fmt.Errorf("%w: employee %d, subscription %d", repository.ErrDuplicateSubscription, req.EmployeeID, existing.ID)
	}

	p, err := s.planSubscription(ctx, req)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.ReactivateSubscription(ctx, existing.ID, p)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    req.ActorID,
		Action:     "subscription_reactivated",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		OldValue:   string(model.SubscriptionCompleted),
		NewValue: fmt.Sprintf("combo=%s period=%s..%s days=%d", sub.ComboType,
			sub.StartDate.Format("2006-01-02"), sub.EndDate.Format("2006-01-02"), sub.TotalDays),
	})

	return sub, nil
}

// ChangeCombo меняет комбо подписки с переоценкой будущих заказов.
// Разница в стоимости проводится через бюджет проекта.
func (s *Service) ChangeCombo(ctx context.Context, subscriptionID int64, combo model.ComboType, actorID *int64) (*model.LunchSubscription, error) {
	price, err := s.prices.Price(combo)
	if err != nil {
		return nil, err
	}

	old, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	sub, delta, err := s.repo.ChangeCombo(ctx, subscriptionID, combo, price, s.clock.Today(),
		fmt.Sprintf("Смена комбо подписки %d: %s -> %s", subscriptionID, old.ComboType, combo))
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "subscription_combo_changed",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		OldValue:   string(old.ComboType),
		NewValue:   fmt.Sprintf("%s delta=%.2f", combo, toUnits(delta)),
	})

	return sub, nil
}

// PauseSubscription приостанавливает активную подписку.
func (s *Service) PauseSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error) {
	sub, err := s.repo.PauseSubscription(ctx, subscriptionID, s.clock.Now(), s.clock.Today())
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "subscription_paused",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		OldValue:   string(model.SubscriptionActive),
		NewValue:   string(model.SubscriptionPaused),
	})

	return sub, nil
}

// ResumeSubscription возобновляет приостановленную подписку, сдвигая
// дату окончания на число дней паузы.
func (s *Service) ResumeSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error) {
	sub, err := s.repo.ResumeSubscription(ctx, subscriptionID, s.clock.Today())
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "subscription_resumed",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		OldValue:   string(model.SubscriptionPaused),
		NewValue:   fmt.Sprintf("%s end_date=%s", model.SubscriptionActive, sub.EndDate.Format("2006-01-02")),
	})

	return sub, nil
}

// DeactivateSubscription завершает подписку: будущие заказы отменяются,
// их стоимость возвращается в бюджет, сотрудник освобождается для смены
// типа сервиса.
func (s *Service) DeactivateSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error) {
	sub, cancelled, refund, err := s.repo.DeactivateSubscription(ctx, subscriptionID, s.clock.Today(),
		fmt.Sprintf("Возврат за отменённые заказы при завершении подписки %d", subscriptionID))
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "subscription_deactivated",
		EntityType: "lunch_subscription",
		EntityID:   &sub.ID,
		NewValue:   fmt.Sprintf("cancelled=%d refund=%.2f", cancelled, toUnits(refund)),
	})

	return sub, nil
}

// GetSubscriptionByID возвращает подписку вместе с заказами.
func (s *Service) GetSubscriptionByID(ctx context.Context, subscriptionID int64) (*SubscriptionDetails, error) {
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.GetOrdersBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	return &SubscriptionDetails{Subscription: sub, Orders: orders}, nil
}

// GetSubscriptionByEmployee возвращает последнюю подписку сотрудника с заказами.
func (s *Service) GetSubscriptionByEmployee(ctx context.Context, employeeID int64) (*SubscriptionDetails, error) {
	sub, err := s.repo.GetSubscriptionByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.GetOrdersBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	return &SubscriptionDetails{Subscription: sub, Orders: orders}, nil
}

// GetPricePreview рассчитывает стоимость подписки для сотрудника на период
// без каких-либо изменений данных.
func (s *Service) GetPricePreview(ctx context.Context, employeeID int64, combo model.ComboType, start, end time.Time) (*model.PricePreview, error) {
	employee, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	price, err := s.prices.Price(combo)
	if err != nil {
		return nil, err
	}

	mask, err := calendar.ParseMask(employee.WorkingDays)
	if err != nil {
		return nil, err
	}

	days := calendar.CountWorkingDays(mask, calendar.DateOnly(start), calendar.DateOnly(end))

	return &model.PricePreview{
		ComboType:   combo,
		PricePerDay: toUnits(price),
		WorkingDays: days,
		Total:       toUnits(price * int64(days)),
	}, nil
}
