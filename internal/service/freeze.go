package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/azamatrasuli/business-crm-sub000/internal/audit"
	"github.com/azamatrasuli/business-crm-sub000/internal/calendar"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
)

// FreezeOrder замораживает заказ подписки: заказ помечается frozen, окно
// подписки продлевается на один день, на новую дату окончания создаётся
// заказ-замена. Лимит заморозок считается по неделе, в которой происходит
// сама заморозка, а не по неделе даты замораживаемого заказа.
func (s *Service) FreezeOrder(ctx context.Context, orderID int64, reason string, actorID *int64) (*model.LunchSubscription, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsGuest() {
		return nil, fmt.Errorf("%w: order %d", ErrGuestOrder, orderID)
	}
	if order.Status != model.OrderActive {
		return nil, fmt.Errorf("%w: order %d is %s, freeze needs active", repository.ErrWrongStatus, orderID, order.Status)
	}

	today := s.clock.Today()
	if order.OrderDate.Before(today) {
		return nil, fmt.Errorf("%w: order %d dated %s", ErrPastDate, orderID, order.OrderDate.Format("2006-01-02"))
	}

	if err := s.checkCutoff(ctx, order, today); err != nil {
		return nil, err
	}

	// Быстрая проверка лимита до транзакции; авторитетная повторяется в
	// репозитории под блокировкой строки сотрудника.
	now := s.clock.Now()
	info, err := s.GetFreezeInfo(ctx, *order.EmployeeID)
	if err != nil {
		return nil, err
	}
	if info.Remaining <= 0 {
		return nil, fmt.Errorf("%w: freeze limit is %d per week, %d already used",
			repository.ErrFreezeLimitExceeded, info.WeeklyLimit, info.UsedThisWeek)
	}

	weekStart, weekEnd := calendar.WeekBounds(now)
	replacement, sub, err := s.repo.FreezeOrder(ctx, repository.FreezeOrderParams{
		OrderID:     orderID,
		FrozenAt:    now,
		Reason:      reason,
		Today:       today,
		WeeklyLimit: s.freezeLimit,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "order_frozen",
		EntityType: "order",
		EntityID:   &orderID,
		NewValue: fmt.Sprintf("reason=%s replacement=%d end_date=%s", reason,
			replacement.ID, sub.EndDate.Format("2006-01-02")),
	})

	return sub, nil
}

// UnfreezeOrder отменяет заморозку заказа: заказ-замена удаляется,
// окно подписки сокращается обратно на один день.
func (s *Service) UnfreezeOrder(ctx context.Context, orderID int64, actorID *int64) (*model.LunchSubscription, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderFrozen {
		return nil, fmt.Errorf("%w: order %d is %s, unfreeze needs frozen", repository.ErrWrongStatus, orderID, order.Status)
	}

	today := s.clock.Today()
	if order.OrderDate.Before(today) {
		return nil, fmt.Errorf("%w: order %d dated %s", ErrPastDate, orderID, order.OrderDate.Format("2006-01-02"))
	}

	if err := s.checkCutoff(ctx, order, today); err != nil {
		return nil, err
	}

	_, sub, err := s.repo.UnfreezeOrder(ctx, orderID, today)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Event{
		ActorID:    actorID,
		Action:     "order_unfrozen",
		EntityType: "order",
		EntityID:   &orderID,
		NewValue:   fmt.Sprintf("end_date=%s", sub.EndDate.Format("2006-01-02")),
	})

	return sub, nil
}

// checkCutoff запрещает менять сегодняшний заказ после дедлайна проекта.
// Ошибка разбора зоны или времени дедлайна трактуется как "дедлайн не
// прошёл" и логируется: сломанная настройка проекта не должна блокировать
// операции.
func (s *Service) checkCutoff(ctx context.Context, order *model.Order, today time.Time) error {
	if !order.OrderDate.Equal(today) {
		return nil
	}

	project, err := s.repo.GetProject(ctx, order.ProjectID)
	if err != nil {
		return err
	}

	passed, err := calendar.CutoffPassed(s.clock.Now(), project.CutoffTime, project.Timezone)
	if err != nil {
		s.logger.Warn("cutoff check failed, treating as not passed",
			zap.Int64("project_id", project.ID), zap.Error(err))
		return nil
	}
	if passed {
		return fmt.Errorf("%w: project cutoff %s %s", ErrCutoffPassed, project.CutoffTime, project.Timezone)
	}
	return nil
}

// GetFreezeInfo возвращает использование недельного лимита заморозок
// сотрудника на текущую ISO-неделю.
func (s *Service) GetFreezeInfo(ctx context.Context, employeeID int64) (*model.FreezeInfo, error) {
	weekStart, weekEnd := calendar.WeekBounds(s.clock.Now())

	used, err := s.repo.CountFrozenInWeek(ctx, employeeID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	remaining := s.freezeLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return &model.FreezeInfo{
		WeeklyLimit:  s.freezeLimit,
		UsedThisWeek: used,
		Remaining:    remaining,
	}, nil
}
