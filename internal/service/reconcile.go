package service

import (
	"context"
	"time"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

// SubscriptionTotals — производные поля подписки, пересчитанные по
// фактическому набору заказов.
type SubscriptionTotals struct {
	TotalDays     int     `json:"total_days"`
	TotalPrice    float64 `json:"total_price"`
	RemainingDays int     `json:"remaining_days"`
}

// RecomputeSubscription пересчитывает TotalDays, TotalPrice и RemainingDays
// подписки по набору заказов и сохраняет их на строке подписки. Набор
// заказов — источник истины; пересчёт защищает от расхождений после
// точечных правок полей.
func (s *Service) RecomputeSubscription(ctx context.Context, subscriptionID int64) (*SubscriptionTotals, error) {
	totalDays, totalPrice, remaining, err := s.repo.RecomputeSubscriptionTotals(ctx, subscriptionID, s.clock.Today())
	if err != nil {
		return nil, err
	}

	return &SubscriptionTotals{
		TotalDays:     totalDays,
		TotalPrice:    toUnits(totalPrice),
		RemainingDays: remaining,
	}, nil
}

// ReconcileOrders — чистый пересчёт итогов по срезу заказов; используется
// как эталон в тестах и для проверки согласованности без похода в базу.
// Замороженный заказ не входит в TotalDays и TotalPrice: его день и деньги
// несёт заказ-замена, но до даты выдачи он считается в RemainingDays.
func ReconcileOrders(orders []model.Order, sub *model.LunchSubscription, today time.Time) SubscriptionTotals {
	var t SubscriptionTotals
	for _, o := range orders {
		if o.OrderDate.Before(sub.StartDate) || o.OrderDate.After(sub.EndDate) {
			continue
		}
		switch o.Status {
		case model.OrderActive, model.OrderPaused, model.OrderDelivered:
			t.TotalDays++
			t.TotalPrice += toUnits(o.PriceKopecks)
		}
		if (o.Status == model.OrderActive || o.Status == model.OrderFrozen) && !o.OrderDate.Before(today) {
			t.RemainingDays++
		}
	}
	return t
}
