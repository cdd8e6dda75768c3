// Package service реализует бизнес-логику жизненного цикла подписки на
// обеды: создание и повторную активацию, смену комбо, паузу и
// возобновление, заморозку заказов и завершение подписки, а также
// бюджетный леджер проекта.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/azamatrasuli/business-crm-sub000/internal/audit"
	"github.com/azamatrasuli/business-crm-sub000/internal/clock"
	"github.com/azamatrasuli/business-crm-sub000/internal/idempotency"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
	"github.com/azamatrasuli/business-crm-sub000/internal/pricing"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
)

// ErrPastDate возвращается, если операция запрошена для прошедшей даты.
var (
	ErrPastDate = errors.New("date is in the past")
	// ErrWrongServiceType возвращается, если тип сервиса сотрудника не
	// совместим с запрошенной операцией.
	ErrWrongServiceType = errors.New("employee service type does not allow this operation")
	// ErrEmployeeInactive возвращается для неактивных или удалённых сотрудников.
	ErrEmployeeInactive = errors.New("employee is inactive or deleted")
	// ErrNoProject возвращается, если у сотрудника не указан проект.
	ErrNoProject = errors.New("employee has no project")
	// ErrInsufficientBudget возвращается быстрой проверкой бюджета до начала
	// изменений; авторитетна всё равно атомарная операция списания.
	ErrInsufficientBudget = errors.New("insufficient project budget")
	// ErrCutoffPassed возвращается, если время изменения сегодняшних заказов прошло.
	ErrCutoffPassed = errors.New("cutoff time for today has passed")
	// ErrGuestOrder возвращается при попытке заморозить гостевой заказ.
	ErrGuestOrder = errors.New("operation is not applicable to guest orders")
	// ErrEmptyPeriod возвращается, если в периоде подписки нет рабочих дней.
	ErrEmptyPeriod = errors.New("no working days in subscription period")
)

// DefaultFreezeWeeklyLimit — лимит заморозок на ISO-неделю по умолчанию.
const DefaultFreezeWeeklyLimit = 2

// compensationDedupTTL ограничивает окно, в котором повтор компенсационной
// выплаты с теми же параметрами считается дублем.
const compensationDedupTTL = 24 * time.Hour

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetEmployee(ctx context.Context, employeeID int64) (*model.Employee, error)
	GetProject(ctx context.Context, projectID int64) (*model.Project, error)

	DebitBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error)
	CreditBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error)
	GetTransactions(ctx context.Context, projectID int64, limit int) ([]model.CompanyTransaction, error)

	GetSubscription(ctx context.Context, subscriptionID int64) (*model.LunchSubscription, error)
	GetSubscriptionByEmployee(ctx context.Context, employeeID int64) (*model.LunchSubscription, error)
	CreateSubscription(ctx context.Context, p repository.CreateSubscriptionParams) (*model.LunchSubscription, error)
	ReactivateSubscription(ctx context.Context, subscriptionID int64, p repository.CreateSubscriptionParams) (*model.LunchSubscription, error)
	ChangeCombo(ctx context.Context, subscriptionID int64, combo model.ComboType, newPrice int64, today time.Time, description string) (*model.LunchSubscription, int64, error)
	PauseSubscription(ctx context.Context, subscriptionID int64, now, today time.Time) (*model.LunchSubscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID int64, today time.Time) (*model.LunchSubscription, error)
	FreezeOrder(ctx context.Context, p repository.FreezeOrderParams) (*model.Order, *model.LunchSubscription, error)
	UnfreezeOrder(ctx context.Context, orderID int64, today time.Time) (*model.Order, *model.LunchSubscription, error)
	DeactivateSubscription(ctx context.Context, subscriptionID int64, today time.Time, description string) (*model.LunchSubscription, int, int64, error)
	RecomputeSubscriptionTotals(ctx context.Context, subscriptionID int64, today time.Time) (int, int64, int, error)

	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]model.Order, error)
	CountFrozenInWeek(ctx context.Context, employeeID int64, from, to time.Time) (int, error)
	CreateGuestOrder(ctx context.Context, projectID int64, guestName string, combo model.ComboType, price int64, currency string, date time.Time, description string) (*model.Order, error)
	CancelGuestOrder(ctx context.Context, orderID int64, today time.Time, description string) (*model.Order, error)
}

// Service содержит бизнес-логику сервиса корпоративных обедов.
type Service struct {
	repo        Repository
	clock       clock.Clock
	prices      pricing.Table
	sink        audit.Sink
	idem        idempotency.Store
	logger      *zap.Logger
	freezeLimit int
}

// NewService создаёт сервис. Таблица цен и часы передаются явно, чтобы
// ценозависимое и датозависимое поведение было детерминированным в тестах.
func NewService(repo Repository, clk clock.Clock, prices pricing.Table, sink audit.Sink, idem idempotency.Store, logger *zap.Logger, freezeLimit int) *Service {
	if freezeLimit <= 0 {
		freezeLimit = DefaultFreezeWeeklyLimit
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if idem == nil {
		idem = idempotency.Disabled{}
	}
	return &Service{
		repo:        repo,
		clock:       clk,
		prices:      prices,
		sink:        sink,
		idem:        idem,
		logger:      logger,
		freezeLimit: freezeLimit,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// recordAudit пишет событие в журнал аудита. Запись — fire-and-forget:
// ошибка логируется и не влияет на результат операции.
func (s *Service) recordAudit(ctx context.Context, e audit.Event) {
	if err := s.sink.Record(ctx, e); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", e.Action), zap.Error(err))
	}
}

// toUnits переводит копейки в рубли для отдачи наружу.
func toUnits(kopecks int64) float64 {
	return float64(kopecks) / 100
}

// toKopecks переводит сумму в рублях в копейки.
func toKopecks(units float64) int64 {
	return int64(units * 100)
}
