// Package handler содержит HTTP-обработчики API сервиса обедов.
// Обработчики — тонкий слой: разбор запроса, вызов сервиса и перевод
// доменных ошибок в коды ответов с машиночитаемым полем code.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/azamatrasuli/business-crm-sub000/internal/idempotency"
	"github.com/azamatrasuli/business-crm-sub000/internal/model"
	"github.com/azamatrasuli/business-crm-sub000/internal/repository"
	"github.com/azamatrasuli/business-crm-sub000/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateSubscription(ctx context.Context, req service.SubscriptionRequest) (*model.LunchSubscription, error)
	ReactivateSubscription(ctx context.Context, req service.SubscriptionRequest) (*model.LunchSubscription, error)
	ChangeCombo(ctx context.Context, subscriptionID int64, combo model.ComboType, actorID *int64) (*model.LunchSubscription, error)
	PauseSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error)
	DeactivateSubscription(ctx context.Context, subscriptionID int64, actorID *int64) (*model.LunchSubscription, error)
	FreezeOrder(ctx context.Context, orderID int64, reason string, actorID *int64) (*model.LunchSubscription, error)
	UnfreezeOrder(ctx context.Context, orderID int64, actorID *int64) (*model.LunchSubscription, error)
	GetSubscriptionByID(ctx context.Context, subscriptionID int64) (*service.SubscriptionDetails, error)
	GetSubscriptionByEmployee(ctx context.Context, employeeID int64) (*service.SubscriptionDetails, error)
	GetFreezeInfo(ctx context.Context, employeeID int64) (*model.FreezeInfo, error)
	GetPricePreview(ctx context.Context, employeeID int64, combo model.ComboType, start, end time.Time) (*model.PricePreview, error)
	RecomputeSubscription(ctx context.Context, subscriptionID int64) (*service.SubscriptionTotals, error)
	GetBudget(ctx context.Context, projectID int64) (*model.Budget, error)
	GetTransactions(ctx context.Context, projectID int64, limit int) ([]model.CompanyTransaction, error)
	DebitBudget(ctx context.Context, projectID int64, amount float64, description string) (*model.CompanyTransaction, error)
	CreditBudget(ctx context.Context, projectID int64, amount float64, description string) (*model.CompanyTransaction, error)
	CreateGuestOrder(ctx context.Context, projectID int64, guestName string, combo model.ComboType, date time.Time, actorID *int64) (*model.Order, error)
	CancelGuestOrder(ctx context.Context, orderID int64, actorID *int64) (*model.Order, error)
	PayCompensation(ctx context.Context, employeeID int64, amount float64, description string, actorID *int64) (*model.CompanyTransaction, error)
}

// Handler реализует HTTP-обработчики API сервиса обедов.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{service: s, logger: logger}
}

const dateLayout = "2006-01-02"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError переводит доменную ошибку в HTTP-статус и машиночитаемый код.
// Текст доменной ошибки содержит конкретику нарушенного правила и отдаётся
// клиенту; неклассифицированные ошибки наружу не уходят, только в лог.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, repository.ErrEmployeeNotFound),
		errors.Is(err, repository.ErrProjectNotFound),
		errors.Is(err, repository.ErrSubscriptionNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrDuplicateSubscription):
		status, code = http.StatusConflict, "duplicate_subscription"
	case errors.Is(err, idempotency.ErrDuplicate):
		status, code = http.StatusConflict, "duplicate_operation"
	case errors.Is(err, repository.ErrInsufficientFunds):
		status, code = http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, service.ErrInsufficientBudget):
		status, code = http.StatusUnprocessableEntity, "insufficient_budget"
	case errors.Is(err, repository.ErrFreezeLimitExceeded):
		status, code = http.StatusUnprocessableEntity, "freeze_limit_exceeded"
	case errors.Is(err, service.ErrCutoffPassed):
		status, code = http.StatusUnprocessableEntity, "cutoff_passed"
	case errors.Is(err, service.ErrPastDate):
		status, code = http.StatusUnprocessableEntity, "past_date"
	case errors.Is(err, service.ErrWrongServiceType):
		status, code = http.StatusUnprocessableEntity, "wrong_service_type"
	case errors.Is(err, service.ErrEmployeeInactive):
		status, code = http.StatusUnprocessableEntity, "employee_inactive"
	case errors.Is(err, service.ErrNoProject):
		status, code = http.StatusUnprocessableEntity, "no_project"
	case errors.Is(err, service.ErrEmptyPeriod):
		status, code = http.StatusUnprocessableEntity, "empty_period"
	case errors.Is(err, service.ErrGuestOrder):
		status, code = http.StatusUnprocessableEntity, "guest_order"
	case errors.Is(err, repository.ErrWrongStatus):
		status, code = http.StatusUnprocessableEntity, "wrong_status"
	case errors.Is(err, repository.ErrNoOrdersCreated):
		status, code = http.StatusUnprocessableEntity, "no_orders_created"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("internal error", zap.Error(err))
		message = http.StatusText(http.StatusInternalServerError)
	}

	h.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type subscriptionResponse struct {
	ID              int64    `json:"id"`
	EmployeeID      int64    `json:"employee_id"`
	ProjectID       int64    `json:"project_id"`
	ComboType       string   `json:"combo_type"`
	Status          string   `json:"status"`
	IsActive        bool     `json:"is_active"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	OriginalEndDate string   `json:"original_end_date"`
	ScheduleType    string   `json:"schedule_type"`
	FrozenDaysCount int      `json:"frozen_days_count"`
	PausedDaysCount int      `json:"paused_days_count"`
	TotalDays       int      `json:"total_days"`
	TotalPrice      float64  `json:"total_price"`
}

func toSubscriptionResponse(s *model.LunchSubscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              s.ID,
		EmployeeID:      s.EmployeeID,
		ProjectID:       s.ProjectID,
		ComboType:       string(s.ComboType),
		Status:          string(s.Status),
		IsActive:        s.IsActive,
		StartDate:       s.StartDate.Format(dateLayout),
		EndDate:         s.EndDate.Format(dateLayout),
		OriginalEndDate: s.OriginalEndDate.Format(dateLayout),
		ScheduleType:    string(s.ScheduleType),
		FrozenDaysCount: s.FrozenDaysCount,
		PausedDaysCount: s.PausedDaysCount,
		TotalDays:       s.TotalDays,
		TotalPrice:      float64(s.TotalPriceKopecks) / 100,
	}
}

type orderResponse struct {
	ID                 int64   `json:"id"`
	EmployeeID         *int64  `json:"employee_id,omitempty"`
	GuestName          string  `json:"guest_name,omitempty"`
	ProjectID          int64   `json:"project_id"`
	SubscriptionID     *int64  `json:"subscription_id,omitempty"`
	ComboType          string  `json:"combo_type"`
	Price              float64 `json:"price"`
	CurrencyCode       string  `json:"currency_code"`
	Status             string  `json:"status"`
	OrderDate          string  `json:"order_date"`
	FrozenReason       string  `json:"frozen_reason,omitempty"`
	ReplacementOrderID *int64  `json:"replacement_order_id,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		EmployeeID:         o.EmployeeID,
		GuestName:          o.GuestName,
		ProjectID:          o.ProjectID,
		SubscriptionID:     o.SubscriptionID,
		ComboType:          string(o.ComboType),
		Price:              float64(o.PriceKopecks) / 100,
		CurrencyCode:       o.CurrencyCode,
		Status:             string(o.Status),
		OrderDate:          o.OrderDate.Format(dateLayout),
		FrozenReason:       o.FrozenReason,
		ReplacementOrderID: o.ReplacementOrderID,
	}
}

type subscriptionRequest struct {
	EmployeeID   int64    `json:"employee_id"`
	ComboType    string   `json:"combo_type"`
	ScheduleType string   `json:"schedule_type"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	CustomDates  []string `json:"custom_dates"`
	ActorID      *int64   `json:"actor_id"`
}

func (req *subscriptionRequest) toServiceRequest() (service.SubscriptionRequest, error) {
	out := service.SubscriptionRequest{
		EmployeeID:   req.EmployeeID,
		ComboType:    model.ComboType(req.ComboType),
		ScheduleType: model.ScheduleType(req.ScheduleType),
		ActorID:      req.ActorID,
	}

	var err error
	if req.StartDate != "" {
		if out.StartDate, err = time.Parse(dateLayout, req.StartDate); err != nil {
			return out, err
		}
	}
	if req.EndDate != "" {
		if out.EndDate, err = time.Parse(dateLayout, req.EndDate); err != nil {
			return out, err
		}
	}
	for _, d := range req.CustomDates {
		parsed, err := time.Parse(dateLayout, d)
		if err != nil {
			return out, err
		}
		out.CustomDates = append(out.CustomDates, parsed)
	}

	return out, nil
}

// CreateSubscription оформляет новую подписку сотрудника.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.EmployeeID == 0 || req.ComboType == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	svcReq, err := req.toServiceRequest()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), svcReq)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// ReactivateSubscription возобновляет завершённую подписку сотрудника.
func (h *Handler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.EmployeeID == 0 || req.ComboType == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	svcReq, err := req.toServiceRequest()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.ReactivateSubscription(r.Context(), svcReq)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// GetSubscription возвращает подписку с заказами.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	details, err := h.service.GetSubscriptionByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toDetailsResponse(details))
}

// GetEmployeeSubscription возвращает последнюю подписку сотрудника.
func (h *Handler) GetEmployeeSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	details, err := h.service.GetSubscriptionByEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toDetailsResponse(details))
}

type detailsResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Orders       []orderResponse      `json:"orders"`
}

func toDetailsResponse(d *service.SubscriptionDetails) detailsResponse {
	resp := detailsResponse{Subscription: toSubscriptionResponse(d.Subscription)}
	for i := range d.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&d.Orders[i]))
	}
	return resp
}

type actorRequest struct {
	ActorID *int64 `json:"actor_id"`
}

func decodeActor(r *http.Request) *int64 {
	var req actorRequest
	// Тело не обязательно: операция без actor_id тоже валидна.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.ActorID
}

// PauseSubscription приостанавливает подписку.
func (h *Handler) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.service.PauseSubscription)
}

// ResumeSubscription возобновляет подписку.
func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.service.ResumeSubscription)
}

// DeactivateSubscription завершает подписку.
func (h *Handler) DeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.service.DeactivateSubscription)
}

func (h *Handler) subscriptionAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, *int64) (*model.LunchSubscription, error)) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := fn(r.Context(), id, decodeActor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ChangeCombo меняет комбо подписки.
func (h *Handler) ChangeCombo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		ComboType string `json:"combo_type"`
		ActorID   *int64 `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ComboType == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.ChangeCombo(r.Context(), id, model.ComboType(req.ComboType), req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// RecomputeSubscription пересчитывает производные поля подписки.
func (h *Handler) RecomputeSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	totals, err := h.service.RecomputeSubscription(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, totals)
}

// FreezeOrder замораживает заказ подписки.
func (h *Handler) FreezeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		Reason  string `json:"reason"`
		ActorID *int64 `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.FreezeOrder(r.Context(), id, req.Reason, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// UnfreezeOrder отменяет заморозку заказа.
func (h *Handler) UnfreezeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := h.service.UnfreezeOrder(r.Context(), id, decodeActor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// GetFreezeInfo возвращает использование недельного лимита заморозок.
func (h *Handler) GetFreezeInfo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	info, err := h.service.GetFreezeInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// GetPricePreview рассчитывает стоимость подписки на период.
func (h *Handler) GetPricePreview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	start, errStart := time.Parse(dateLayout, q.Get("start_date"))
	end, errEnd := time.Parse(dateLayout, q.Get("end_date"))
	combo := q.Get("combo_type")
	if errStart != nil || errEnd != nil || combo == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	preview, err := h.service.GetPricePreview(r.Context(), id, model.ComboType(combo), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, preview)
}

type transactionResponse struct {
	ID           int64   `json:"id"`
	Code         string  `json:"code"`
	ProjectID    int64   `json:"project_id"`
	Amount       float64 `json:"amount"`
	BalanceAfter float64 `json:"balance_after"`
	Description  string  `json:"description"`
	OrderID      *int64  `json:"order_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func toTransactionResponse(t *model.CompanyTransaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Code:         t.Code,
		ProjectID:    t.ProjectID,
		Amount:       float64(t.AmountKopecks) / 100,
		BalanceAfter: float64(t.BalanceAfterKopecks) / 100,
		Description:  t.Description,
		OrderID:      t.OrderID,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
}

// GetBudget возвращает состояние бюджета проекта.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	budget, err := h.service.GetBudget(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, budget)
}

// GetTransactions возвращает историю движений по бюджету проекта.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.service.GetTransactions(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		resp = append(resp, toTransactionResponse(&txns[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type amountRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// DebitBudget списывает сумму с бюджета проекта.
func (h *Handler) DebitBudget(w http.ResponseWriter, r *http.Request) {
	h.budgetAction(w, r, h.service.DebitBudget)
}

// CreditBudget пополняет бюджет проекта.
func (h *Handler) CreditBudget(w http.ResponseWriter, r *http.Request) {
	h.budgetAction(w, r, h.service.CreditBudget)
}

func (h *Handler) budgetAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, float64, string) (*model.CompanyTransaction, error)) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txn, err := fn(r.Context(), id, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(txn))
}

// CreateGuestOrder создаёт разовый гостевой заказ.
func (h *Handler) CreateGuestOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		GuestName string `json:"guest_name"`
		ComboType string `json:"combo_type"`
		OrderDate string `json:"order_date"`
		ActorID   *int64 `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GuestName == "" || req.ComboType == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	date, err := time.Parse(dateLayout, req.OrderDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateGuestOrder(r.Context(), id, req.GuestName, model.ComboType(req.ComboType), date, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// CancelGuestOrder отменяет гостевой заказ с возвратом средств.
func (h *Handler) CancelGuestOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CancelGuestOrder(r.Context(), id, decodeActor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// PayCompensation проводит компенсационную выплату сотруднику.
func (h *Handler) PayCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
		ActorID     *int64  `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txn, err := h.service.PayCompensation(r.Context(), id, req.Amount, req.Description, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(txn))
}
