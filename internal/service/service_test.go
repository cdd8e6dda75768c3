package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/azamatrasuli/business-crm-sub000/internal/idempotency"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
	"github.com/azamatrasuli/business-crm-sub000/internal/pricing"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (c fixedClock) Today() time.Time {
	n := c.now.UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type stubRepo struct {
	employee    *model.Employee
	employeeErr error

	project    *model.Project
	projectErr error

	sub    *model.LunchSubscription
	subErr error

	subByEmployee    *model.LunchSubscription
	subByEmployeeErr error

	createParams repository.CreateSubscriptionParams
	createSub    *model.LunchSubscription
	createErr    error

	order    *model.Order
	orderErr error

	orders    []model.Order
	ordersErr error

	frozenCount      int
	frozenErr        error
	frozenEmployeeID int64
	frozenFrom       time.Time
	frozenTo         time.Time

	freezeParams      repository.FreezeOrderParams
	freezeReplacement *model.Order
	freezeSub         *model.LunchSubscription
	freezeErr         error

	debitProjectID   int64
	debitAmount      int64
	debitDescription string
	debitTxn         *model.CompanyTransaction
	debitErr         error

	transactions []model.CompanyTransaction
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetEmployee(ctx context.Context, employeeID int64) (*model.Employee, error) {
	return s.employee, s.employeeErr
}

func (s *stubRepo) GetProject(ctx context.Context, projectID int64) (*model.Project, error) {
	return s.project, s.projectErr
}

func (s *stubRepo) DebitBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	s.debitProjectID = projectID
	s.debitAmount = amount
	s.debitDescription = description
	return s.debitTxn, s.debitErr
}

func (s *stubRepo) CreditBudget(ctx context.Context, projectID, amount int64, description string, orderID *int64) (*model.CompanyTransaction, error) {
	return s.debitTxn, s.debitErr
}

func (s *stubRepo) GetTransactions(ctx context.Context, projectID int64, limit int) ([]model.CompanyTransaction, error) {
	return s.transactions, nil
}

func (s *stubRepo) GetSubscription(ctx context.Context, subscriptionID int64) (*model.LunchSubscription, error) {
	return s.sub, s.subErr
}

func (s *stubRepo) GetSubscriptionByEmployee(ctx context.Context, employeeID int64) (*model.LunchSubscription, error) {
	return s.subByEmployee, s.subByEmployeeErr
}

func (s *stubRepo) CreateSubscription(ctx context.Context, p repository.CreateSubscriptionParams) (*model.LunchSubscription, error) {
	s.createParams = p
	return s.createSub, s.createErr
}

func (s *stubRepo) ReactivateSubscription(ctx context.Context, subscriptionID int64, p repository.CreateSubscriptionParams) (*model.LunchSubscription, error) {
	s.createParams = p
	return s.createSub, s.createErr
}

func (s *stubRepo) ChangeCombo(ctx context.Context, subscriptionID int64, combo model.ComboType, newPrice int64, today time.Time, description string) (*model.LunchSubscription, int64, error) {
	return s.sub, 0, s.subErr
}

func (s *stubRepo) PauseSubscription(ctx context.Context, subscriptionID int64, now, today time.Time) (*model.LunchSubscription, error) {
	return s.sub, s.subErr
}

func (s *stubRepo) ResumeSubscription(ctx context.Context, subscriptionID int64, today time.Time) (*model.LunchSubscription, error) {
	return s.sub, s.subErr
}

func (s *stubRepo) FreezeOrder(ctx context.Context, p repository.FreezeOrderParams) (*model.Order, *model.LunchSubscription, error) {
	s.freezeParams = p
	return s.freezeReplacement, s.freezeSub, s.freezeErr
}

func (s *stubRepo) UnfreezeOrder(ctx context.Context, orderID int64, today time.Time) (*model.Order, *model.LunchSubscription, error) {
	return s.freezeReplacement, s.freezeSub, s.freezeErr
}

func (s *stubRepo) DeactivateSubscription(ctx context.Context, subscriptionID int64, today time.Time, description string) (*model.LunchSubscription, int, int64, error) {
	return s.sub, 0, 0, s.subErr
}

func (s *stubRepo) RecomputeSubscriptionTotals(ctx context.Context, subscriptionID int64, today time.Time) (int, int64, int, error) {
	return 0, 0, 0, s.subErr
}

func (s *stubRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubRepo) CountFrozenInWeek(ctx context.Context, employeeID int64, from, to time.Time) (int, error) {
	s.frozenEmployeeID = employeeID
	s.frozenFrom = from
	s.frozenTo = to
	return s.frozenCount, s.frozenErr
}

func (s *stubRepo) CreateGuestOrder(ctx context.Context, projectID int64, guestName string, combo model.ComboType, price int64, currency string, date time.Time, description string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) CancelGuestOrder(ctx context.Context, orderID int64, today time.Time, description string) (*model.Order, error) {
	return s.order, s.orderErr
}

func int64ptr(v int64) *int64 { return &v }

func testEmployee() *model.Employee {
	return &model.Employee{
		ID:          1,
		ProjectID:   int64ptr(10),
		FullName:    "Иванов Иван",
		IsActive:    true,
		ServiceType: model.ServiceTypeNone,
		WorkingDays: "1111100",
	}
}

func testProject() *model.Project {
	return &model.Project{
		ID:                    10,
		Name:                  "Проект",
		BudgetKopecks:         100000,
		OverdraftLimitKopecks: 0,
		CurrencyCode:          "RUB",
		CutoffTime:            "10:00",
		Timezone:              "UTC",
	}
}

func newTestService(repo Repository, clk fixedClock) *Service {
	return NewService(repo, clk, pricing.DefaultTable(), nil, nil, zap.NewNop(), 2)
}

func TestCreateSubscription_PlansWorkingDays(t *testing.T) {
	repo := &stubRepo{
		employee:         testEmployee(),
		project:          testProject(),
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
		createSub:        &model.LunchSubscription{ID: 5},
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 1)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID:   1,
		ComboType:    model.Combo25,
		ScheduleType: model.ScheduleEveryOtherDay,
		StartDate:    date(2026, 1, 5),
		EndDate:      date(2026, 1, 16),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.createParams
	if len(p.OrderDates) != 10 {
		t.Fatalf("expected 10 working days in 2026-01-05..2026-01-16, got %d", len(p.OrderDates))
	}
	if !p.OrderDates[0].Equal(date(2026, 1, 5)) || !p.OrderDates[9].Equal(date(2026, 1, 16)) {
		t.Fatalf("wrong order dates: first %s, last %s", p.OrderDates[0], p.OrderDates[9])
	}
	for _, d := range p.OrderDates {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend date %s planned for Mon-Fri mask", d.Format("2006-01-02"))
		}
	}
	if p.PriceKopecks != 2500 {
		t.Fatalf("expected price 2500 kopecks, got %d", p.PriceKopecks)
	}
	if p.ScheduleType != model.ScheduleEveryDay {
		t.Fatalf("every_other_day must normalize to every_day, got %s", p.ScheduleType)
	}
}

func TestCreateSubscription_PastStartDate(t *testing.T) {
	repo := &stubRepo{
		employee:         testEmployee(),
		project:          testProject(),
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 10)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID: 1,
		ComboType:  model.Combo25,
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 16),
	})
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
}

func TestCreateSubscription_WrongServiceType(t *testing.T) {
	employee := testEmployee()
	employee.ServiceType = model.ServiceTypeCompensation
	repo := &stubRepo{
		employee:         employee,
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 1)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID: 1,
		ComboType:  model.Combo25,
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 16),
	})
	if !errors.Is(err, ErrWrongServiceType) {
		t.Fatalf("expected ErrWrongServiceType, got %v", err)
	}
}

func TestCreateSubscription_DuplicateActive(t *testing.T) {
	repo := &stubRepo{
		subByEmployee: &model.LunchSubscription{ID: 7, Status: model.SubscriptionActive},
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 1)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID: 1,
		ComboType:  model.Combo25,
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 16),
	})
	if !errors.Is(err, repository.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}
}

func TestCreateSubscription_InsufficientBudget(t *testing.T) {
	project := testProject()
	project.BudgetKopecks = 20000 // хватает только на 8 дней
	repo := &stubRepo{
		employee:         testEmployee(),
		project:          project,
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 1)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID: 1,
		ComboType:  model.Combo25,
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 16),
	})
	if !errors.Is(err, ErrInsufficientBudget) {
		t.Fatalf("expected ErrInsufficientBudget, got %v", err)
	}
}

func TestCreateSubscription_CustomSkipsPastDates(t *testing.T) {
	repo := &stubRepo{
		employee:         testEmployee(),
		project:          testProject(),
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
		createSub:        &model.LunchSubscription{ID: 5},
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 10)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID:   1,
		ComboType:    model.Combo25,
		ScheduleType: model.ScheduleCustom,
		CustomDates: []time.Time{
			date(2026, 1, 5), // прошедшая, должна быть пропущена
			date(2026, 1, 14),
			date(2026, 1, 12),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.createParams
	if len(p.OrderDates) != 2 {
		t.Fatalf("expected 2 future dates, got %d", len(p.OrderDates))
	}
	if !p.StartDate.Equal(date(2026, 1, 12)) || !p.EndDate.Equal(date(2026, 1, 14)) {
		t.Fatalf("period must be derived from remaining dates, got %s..%s",
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	}
}

func TestCreateSubscription_CustomAllPast(t *testing.T) {
	repo := &stubRepo{
		employee:         testEmployee(),
		project:          testProject(),
		subByEmployeeErr: repository.ErrSubscriptionNotFound,
	}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 10)})

	_, err := svc.CreateSubscription(context.Background(), SubscriptionRequest{
		EmployeeID:   1,
		ComboType:    model.Combo25,
		ScheduleType: model.ScheduleCustom,
		CustomDates:  []time.Time{date(2026, 1, 5), date(2026, 1, 6)},
	})
	if !errors.Is(err, ErrEmptyPeriod) {
		t.Fatalf("expected ErrEmptyPeriod, got %v", err)
	}
}

func futureOrder() *model.Order {
	return &model.Order{
		ID:           100,
		EmployeeID:   int64ptr(1),
		ProjectID:    10,
		ComboType:    model.Combo25,
		PriceKopecks: 2500,
		Status:       model.OrderActive,
		OrderDate:    date(2026, 1, 14),
	}
}

func TestFreezeOrder_Success(t *testing.T) {
	repo := &stubRepo{
		order:             futureOrder(),
		project:           testProject(),
		frozenCount:       1,
		freezeReplacement: &model.Order{ID: 101, OrderDate: date(2026, 1, 17)},
		freezeSub:         &model.LunchSubscription{ID: 5, EndDate: date(2026, 1, 17)},
	}
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, fixedClock{now: now})

	sub, err := svc.FreezeOrder(context.Background(), 100, "отпуск", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ID != 5 {
		t.Fatalf("expected subscription 5, got %d", sub.ID)
	}
	if repo.freezeParams.OrderID != 100 || repo.freezeParams.Reason != "отпуск" {
		t.Fatalf("wrong freeze params: %+v", repo.freezeParams)
	}
	if !repo.freezeParams.FrozenAt.Equal(now) {
		t.Fatalf("frozen_at must be the current moment, got %s", repo.freezeParams.FrozenAt)
	}
	// Лимит и границы недели уходят в репозиторий для повторной проверки
	// уже внутри транзакции.
	if repo.freezeParams.WeeklyLimit != 2 {
		t.Fatalf("weekly limit = %d, want 2", repo.freezeParams.WeeklyLimit)
	}
	if !repo.freezeParams.WeekStart.Equal(date(2026, 1, 12)) || !repo.freezeParams.WeekEnd.Equal(date(2026, 1, 19)) {
		t.Fatalf("week bounds = %s..%s, want 2026-01-12..2026-01-19",
			repo.freezeParams.WeekStart.Format("2006-01-02"), repo.freezeParams.WeekEnd.Format("2006-01-02"))
	}
}

func TestFreezeOrder_LimitCountsCurrentWeek(t *testing.T) {
	repo := &stubRepo{
		order:             futureOrder(),
		project:           testProject(),
		frozenCount:       0,
		freezeReplacement: &model.Order{ID: 101},
		freezeSub:         &model.LunchSubscription{ID: 5, EndDate: date(2026, 1, 17)},
	}
	// среда 2026-01-14: границы недели — понедельник 12-е и следующий понедельник 19-е
	svc := newTestService(repo, fixedClock{now: time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.frozenEmployeeID != 1 {
		t.Fatalf("expected count for employee 1, got %d", repo.frozenEmployeeID)
	}
	if !repo.frozenFrom.Equal(date(2026, 1, 12)) || !repo.frozenTo.Equal(date(2026, 1, 19)) {
		t.Fatalf("limit must be counted within the current week, got %s..%s",
			repo.frozenFrom.Format("2006-01-02"), repo.frozenTo.Format("2006-01-02"))
	}
}

func TestFreezeOrder_LimitExceeded(t *testing.T) {
	repo := &stubRepo{
		order:       futureOrder(),
		project:     testProject(),
		frozenCount: 2,
	}
	svc := newTestService(repo, fixedClock{now: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if !errors.Is(err, repository.ErrFreezeLimitExceeded) {
		t.Fatalf("expected ErrFreezeLimitExceeded, got %v", err)
	}
}

func TestFreezeOrder_GuestOrder(t *testing.T) {
	order := futureOrder()
	order.EmployeeID = nil
	order.GuestName = "Гость"
	repo := &stubRepo{order: order}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if !errors.Is(err, ErrGuestOrder) {
		t.Fatalf("expected ErrGuestOrder, got %v", err)
	}
}

func TestFreezeOrder_PastOrder(t *testing.T) {
	order := futureOrder()
	order.OrderDate = date(2026, 1, 5)
	repo := &stubRepo{order: order}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
}

func TestFreezeOrder_WrongStatus(t *testing.T) {
	order := futureOrder()
	order.Status = model.OrderFrozen
	repo := &stubRepo{order: order}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if !errors.Is(err, repository.ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus, got %v", err)
	}
}

func TestFreezeOrder_CutoffPassedForToday(t *testing.T) {
	order := futureOrder()
	order.OrderDate = date(2026, 1, 12)
	repo := &stubRepo{
		order:   order,
		project: testProject(), // дедлайн 10:00 UTC
	}
	svc := newTestService(repo, fixedClock{now: time.Date(2026, 1, 12, 11, 0, 0, 0, time.UTC)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if !errors.Is(err, ErrCutoffPassed) {
		t.Fatalf("expected ErrCutoffPassed, got %v", err)
	}
}

func TestFreezeOrder_BeforeCutoffToday(t *testing.T) {
	order := futureOrder()
	order.OrderDate = date(2026, 1, 12)
	repo := &stubRepo{
		order:             order,
		project:           testProject(),
		freezeReplacement: &model.Order{ID: 101},
		freezeSub:         &model.LunchSubscription{ID: 5, EndDate: date(2026, 1, 17)},
	}
	svc := newTestService(repo, fixedClock{now: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)})

	_, err := svc.FreezeOrder(context.Background(), 100, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnfreezeOrder_WrongStatus(t *testing.T) {
	repo := &stubRepo{order: futureOrder()} // active, а не frozen
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.UnfreezeOrder(context.Background(), 100, nil)
	if !errors.Is(err, repository.ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus, got %v", err)
	}
}

// freezeStateRepo — фейк с настоящим состоянием заказов и подписки:
// реализует контракт заморозки так же, как репозиторий, чтобы проверить
// полный цикл заморозка-разморозка на уровне сервиса.
type freezeStateRepo struct {
	stubRepo

	subscription *model.LunchSubscription
	byID         map[int64]*model.Order
	nextID       int64
}

func newFreezeStateRepo(sub *model.LunchSubscription, orders []*model.Order) *freezeStateRepo {
	r := &freezeStateRepo{
		stubRepo:     stubRepo{project: testProject()},
		subscription: sub,
		byID:         make(map[int64]*model.Order),
		nextID:       1000,
	}
	for _, o := range orders {
		r.byID[o.ID] = o
	}
	return r
}

func (r *freezeStateRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	o, ok := r.byID[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *freezeStateRepo) GetOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]model.Order, error) {
	var out []model.Order
	for _, o := range r.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (r *freezeStateRepo) CountFrozenInWeek(ctx context.Context, employeeID int64, from, to time.Time) (int, error) {
	count := 0
	for _, o := range r.byID {
		if o.Status == model.OrderFrozen && o.FrozenAt != nil &&
			!o.FrozenAt.Before(from) && o.FrozenAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (r *freezeStateRepo) FreezeOrder(ctx context.Context, p repository.FreezeOrderParams) (*model.Order, *model.LunchSubscription, error) {
	o := r.byID[p.OrderID]
	newEnd := r.subscription.EndDate.AddDate(0, 0, 1)

	frozenAt := p.FrozenAt
	o.Status = model.OrderFrozen
	o.FrozenAt = &frozenAt
	o.FrozenReason = p.Reason

	r.nextID++
	replacement := &model.Order{
		ID:             r.nextID,
		EmployeeID:     o.EmployeeID,
		ProjectID:      o.ProjectID,
		SubscriptionID: o.SubscriptionID,
		ComboType:      o.ComboType,
		PriceKopecks:   o.PriceKopecks,
		Status:         model.OrderActive,
		OrderDate:      newEnd,
	}
	r.byID[replacement.ID] = replacement
	o.ReplacementOrderID = &replacement.ID

	r.subscription.EndDate = newEnd
	r.subscription.FrozenDaysCount++
	cp := *r.subscription
	return replacement, &cp, nil
}

func (r *freezeStateRepo) UnfreezeOrder(ctx context.Context, orderID int64, today time.Time) (*model.Order, *model.LunchSubscription, error) {
	o := r.byID[orderID]
	if o.ReplacementOrderID != nil {
		delete(r.byID, *o.ReplacementOrderID)
	}
	o.Status = model.OrderActive
	o.FrozenAt = nil
	o.FrozenReason = ""
	o.ReplacementOrderID = nil

	r.subscription.EndDate = r.subscription.EndDate.AddDate(0, 0, -1)
	r.subscription.FrozenDaysCount--
	cp := *r.subscription
	oc := *o
	return &oc, &cp, nil
}

func TestFreezeUnfreeze_RoundTrip(t *testing.T) {
	subID := int64(5)
	sub := &model.LunchSubscription{
		ID:         subID,
		EmployeeID: 1,
		Status:     model.SubscriptionActive,
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 16),
	}
	var orders []*model.Order
	id := int64(100)
	for d := date(2026, 1, 5); !d.After(date(2026, 1, 16)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		orders = append(orders, &model.Order{
			ID:             id,
			EmployeeID:     int64ptr(1),
			ProjectID:      10,
			SubscriptionID: &subID,
			ComboType:      model.Combo25,
			PriceKopecks:   2500,
			Status:         model.OrderActive,
			OrderDate:      d,
		})
		id++
	}
	repo := newFreezeStateRepo(sub, orders)
	svc := newTestService(repo, fixedClock{now: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)})

	before, err := repo.GetOrdersBySubscription(context.Background(), subID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTotals := ReconcileOrders(before, sub, date(2026, 1, 12))

	// заморозка заказа на среду 14-е
	var orderID int64
	for _, o := range orders {
		if o.OrderDate.Equal(date(2026, 1, 14)) {
			orderID = o.ID
		}
	}
	frozenSub, err := svc.FreezeOrder(context.Background(), orderID, "отпуск", nil)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if !frozenSub.EndDate.Equal(date(2026, 1, 17)) || frozenSub.FrozenDaysCount != 1 {
		t.Fatalf("after freeze: end=%s frozen_days=%d, want 2026-01-17 and 1",
			frozenSub.EndDate.Format("2006-01-02"), frozenSub.FrozenDaysCount)
	}
	frozen, _ := repo.GetOrder(context.Background(), orderID)
	if frozen.Status != model.OrderFrozen || frozen.ReplacementOrderID == nil {
		t.Fatalf("order must be frozen with a replacement, got %+v", frozen)
	}
	replacementID := *frozen.ReplacementOrderID

	// разморозка возвращает всё как было
	restoredSub, err := svc.UnfreezeOrder(context.Background(), orderID, nil)
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if !restoredSub.EndDate.Equal(date(2026, 1, 16)) {
		t.Fatalf("end_date not restored: %s", restoredSub.EndDate.Format("2006-01-02"))
	}
	if restoredSub.FrozenDaysCount != 0 {
		t.Fatalf("frozen_days_count not restored: %d", restoredSub.FrozenDaysCount)
	}
	restored, err := repo.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Status != model.OrderActive || restored.FrozenAt != nil || restored.ReplacementOrderID != nil {
		t.Fatalf("order not restored: %+v", restored)
	}
	if _, err := repo.GetOrder(context.Background(), replacementID); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("replacement order must be deleted, got err %v", err)
	}

	after, err := repo.GetOrdersBySubscription(context.Background(), subID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotTotals := ReconcileOrders(after, restoredSub, date(2026, 1, 12))
	if gotTotals != wantTotals {
		t.Fatalf("totals changed by the round trip: got %+v, want %+v", gotTotals, wantTotals)
	}
}

func TestGetFreezeInfo_ClampsRemaining(t *testing.T) {
	repo := &stubRepo{frozenCount: 3}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	info, err := svc.GetFreezeInfo(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.WeeklyLimit != 2 || info.UsedThisWeek != 3 || info.Remaining != 0 {
		t.Fatalf("expected limit=2 used=3 remaining=0, got %+v", info)
	}
}

type recordingIdemStore struct {
	keys []string
	err  error
}

func (s *recordingIdemStore) ExecuteOnce(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return s.err
	}
	return fn(ctx)
}

func TestPayCompensation_WrongServiceType(t *testing.T) {
	repo := &stubRepo{employee: testEmployee()} // service_type пустой
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.PayCompensation(context.Background(), 1, 500, "обед", nil)
	if !errors.Is(err, ErrWrongServiceType) {
		t.Fatalf("expected ErrWrongServiceType, got %v", err)
	}
}

func TestPayCompensation_KeyAndDuplicate(t *testing.T) {
	employee := testEmployee()
	employee.ServiceType = model.ServiceTypeCompensation
	repo := &stubRepo{
		employee: employee,
		debitTxn: &model.CompanyTransaction{ID: 1},
	}
	idem := &recordingIdemStore{}
	svc := NewService(repo, fixedClock{now: date(2026, 1, 12)}, pricing.DefaultTable(), nil, idem, zap.NewNop(), 2)

	txn, err := svc.PayCompensation(context.Background(), 1, 500, "обед", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn == nil {
		t.Fatalf("expected transaction")
	}
	if len(idem.keys) != 1 || idem.keys[0] != "comp:1:50000:2026-01-12:обед" {
		t.Fatalf("unexpected idempotency key: %v", idem.keys)
	}
	if repo.debitAmount != 50000 {
		t.Fatalf("expected debit of 50000 kopecks, got %d", repo.debitAmount)
	}

	idem.err = idempotency.ErrDuplicate
	_, err = svc.PayCompensation(context.Background(), 1, 500, "обед", nil)
	if !errors.Is(err, idempotency.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateGuestOrder_PastDate(t *testing.T) {
	repo := &stubRepo{project: testProject()}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 12)})

	_, err := svc.CreateGuestOrder(context.Background(), 10, "Гость", model.Combo25, date(2026, 1, 5), nil)
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
}

func TestGetPricePreview(t *testing.T) {
	repo := &stubRepo{employee: testEmployee()}
	svc := newTestService(repo, fixedClock{now: date(2026, 1, 1)})

	preview, err := svc.GetPricePreview(context.Background(), 1, model.Combo35, date(2026, 1, 5), date(2026, 1, 16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.WorkingDays != 10 {
		t.Fatalf("expected 10 working days, got %d", preview.WorkingDays)
	}
	if preview.PricePerDay != 35 || preview.Total != 350 {
		t.Fatalf("expected 35 per day, 350 total, got %+v", preview)
	}
}

func TestReconcileOrders_FrozenCarriedByReplacement(t *testing.T) {
	sub := &model.LunchSubscription{
		StartDate: date(2026, 1, 5),
		EndDate:   date(2026, 1, 17), // продлена заморозкой на один день
	}

	var orders []model.Order
	for d := date(2026, 1, 5); !d.After(date(2026, 1, 16)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		orders = append(orders, model.Order{
			Status:       model.OrderActive,
			OrderDate:    d,
			PriceKopecks: 2500,
		})
	}
	// заморозка заказа на 14-е: сам он выпадает из итогов,
	// его день несёт заказ-замена на новую дату окончания
	orders[7].Status = model.OrderFrozen
	orders = append(orders, model.Order{
		Status:       model.OrderActive,
		OrderDate:    date(2026, 1, 17),
		PriceKopecks: 2500,
	})

	totals := ReconcileOrders(orders, sub, date(2026, 1, 10))
	if totals.TotalDays != 10 {
		t.Fatalf("expected 10 deliverable days, got %d", totals.TotalDays)
	}
	if totals.TotalPrice != 250 {
		t.Fatalf("expected total 250.00, got %.2f", totals.TotalPrice)
	}
	// с 10-го января впереди: 4 активных, замороженный 14-го и замена 17-го
	if totals.RemainingDays != 6 {
		t.Fatalf("expected 6 remaining days (incl. frozen), got %d", totals.RemainingDays)
	}
}

func TestReconcileOrders_CancelledExcluded(t *testing.T) {
	sub := &model.LunchSubscription{
		StartDate: date(2026, 1, 5),
		EndDate:   date(2026, 1, 9),
	}
	orders := []model.Order{
		{Status: model.OrderDelivered, OrderDate: date(2026, 1, 5), PriceKopecks: 2500},
		{Status: model.OrderActive, OrderDate: date(2026, 1, 6), PriceKopecks: 2500},
		{Status: model.OrderCancelled, OrderDate: date(2026, 1, 7), PriceKopecks: 2500},
	}

	totals := ReconcileOrders(orders, sub, date(2026, 1, 6))
	if totals.TotalDays != 2 || totals.TotalPrice != 50 {
		t.Fatalf("cancelled orders must be excluded, got %+v", totals)
	}
	if totals.RemainingDays != 1 {
		t.Fatalf("expected 1 remaining day, got %d", totals.RemainingDays)
	}
}

func TestChangeCombo_UnknownCombo(t *testing.T) {
	svc := newTestService(&stubRepo{}, fixedClock{now: date(2026, 1, 1)})

	_, err := svc.ChangeCombo(context.Background(), 1, model.ComboType("combo99"), nil)
	if err == nil || !strings.Contains(err.Error(), "unknown combo") {
		t.Fatalf("expected unknown combo error, got %v", err)
	}
}
