// Package model содержит доменные сущности сервиса корпоративных обедов.
package model

import "time"

// ServiceType описывает тип сервиса, подключённый сотруднику.
type ServiceType string

const (
	// ServiceTypeNone означает, что сотруднику не подключён ни один сервис.
	ServiceTypeNone ServiceType = ""
	// ServiceTypeLunch — сотрудник получает обеды по подписке.
	ServiceTypeLunch ServiceType = "lunch"
	// ServiceTypeCompensation — сотрудник получает денежную компенсацию вместо обедов.
	ServiceTypeCompensation ServiceType = "compensation"
)

// Employee представляет сотрудника компании.
type Employee struct {
	ID          int64
	ProjectID   *int64
	FullName    string
	IsActive    bool
	IsDeleted   bool
	ServiceType ServiceType
	// WorkingDays — маска рабочих дней "1111100" (Пн..Вс). Пустая строка
	// означает стандартную пятидневку Пн–Пт.
	WorkingDays string
}

// Project представляет проект компании с собственным бюджетом на питание.
type Project struct {
	ID                    int64
	Name                  string
	BudgetKopecks         int64
	OverdraftLimitKopecks int64
	CurrencyCode          string
	// CutoffTime — время "15:04", после которого заказы на сегодня менять нельзя.
	CutoffTime string
	// Timezone — IANA-зона проекта, в которой трактуется CutoffTime.
	Timezone string
}

// ComboType описывает вариант обеденного комбо.
type ComboType string

const (
	Combo25 ComboType = "combo25"
	Combo35 ComboType = "combo35"
)

// ScheduleType описывает расписание выдачи обедов по подписке.
type ScheduleType string

const (
	ScheduleEveryDay ScheduleType = "every_day"
	// ScheduleEveryOtherDay — устаревшее значение, при создании подписки
	// нормализуется в ScheduleEveryDay.
	ScheduleEveryOtherDay ScheduleType = "every_other_day"
	ScheduleCustom        ScheduleType = "custom"
)

// SubscriptionStatus описывает состояние подписки на обеды.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCompleted SubscriptionStatus = "completed"
)

// LunchSubscription представляет подписку сотрудника на обеды.
// TotalDays и TotalPriceKopecks — производные поля, истина выводится из
// набора заказов (см. Recompute в сервисе).
type LunchSubscription struct {
	ID                int64
	EmployeeID        int64
	ProjectID         int64
	ComboType         ComboType
	Status            SubscriptionStatus
	IsActive          bool
	StartDate         time.Time
	EndDate           time.Time
	OriginalEndDate   time.Time
	ScheduleType      ScheduleType
	FrozenDaysCount   int
	PausedAt          *time.Time
	PausedDaysCount   int
	TotalDays         int
	TotalPriceKopecks int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStatus описывает состояние одного заказа обеда.
type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderPaused    OrderStatus = "paused"
	OrderFrozen    OrderStatus = "frozen"
	OrderCancelled OrderStatus = "cancelled"
	OrderDelivered OrderStatus = "delivered"
)

// Order представляет один обед на конкретную дату.
// EmployeeID равен nil для гостевых заказов.
type Order struct {
	ID                 int64
	EmployeeID         *int64
	GuestName          string
	ProjectID          int64
	SubscriptionID     *int64
	ComboType          ComboType
	PriceKopecks       int64
	CurrencyCode       string
	Status             OrderStatus
	OrderDate          time.Time
	FrozenAt           *time.Time
	FrozenReason       string
	ReplacementOrderID *int64
	CreatedAt          time.Time
}

// IsGuest сообщает, является ли заказ гостевым.
func (o *Order) IsGuest() bool {
	return o.EmployeeID == nil
}

// CompanyTransaction — неизменяемая запись о движении средств по бюджету
// проекта. Создаётся только бюджетным леджером и никогда не изменяется.
type CompanyTransaction struct {
	ID                  int64
	Code                string
	ProjectID           int64
	AmountKopecks       int64
	BalanceAfterKopecks int64
	Description         string
	OrderID             *int64
	CreatedAt           time.Time
}

// Budget содержит баланс бюджета проекта для отдачи наружу.
type Budget struct {
	Balance   float64 `json:"balance"`
	Overdraft float64 `json:"overdraft"`
	Available float64 `json:"available"`
}

// FreezeInfo содержит сведения о лимите заморозок сотрудника на текущую неделю.
type FreezeInfo struct {
	WeeklyLimit  int `json:"weekly_limit"`
	UsedThisWeek int `json:"used_this_week"`
	Remaining    int `json:"remaining"`
}

// PricePreview содержит предварительный расчёт стоимости подписки.
type PricePreview struct {
	ComboType   ComboType `json:"combo_type"`
	PricePerDay float64   `json:"price_per_day"`
	WorkingDays int       `json:"working_days"`
	Total       float64   `json:"total"`
}
