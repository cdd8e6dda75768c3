package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/azamatrasuli/business-crm-sub000/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса обедов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.CreateSubscription)
			r.Post("/reactivate", h.ReactivateSubscription)
			r.Get("/{id}", h.GetSubscription)
			r.Post("/{id}/combo", h.ChangeCombo)
			r.Post("/{id}/pause", h.PauseSubscription)
			r.Post("/{id}/resume", h.ResumeSubscription)
			r.Post("/{id}/deactivate", h.DeactivateSubscription)
			r.Post("/{id}/recompute", h.RecomputeSubscription)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{id}/freeze", h.FreezeOrder)
			r.Post("/{id}/unfreeze", h.UnfreezeOrder)
		})

		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/subscription", h.GetEmployeeSubscription)
			r.Get("/freeze-info", h.GetFreezeInfo)
			r.Get("/price-preview", h.GetPricePreview)
			r.Post("/compensation", h.PayCompensation)
		})

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/budget", h.GetBudget)
			r.Get("/transactions", h.GetTransactions)
			r.Post("/debit", h.DebitBudget)
			r.Post("/credit", h.CreditBudget)
			r.Post("/guest-orders", h.CreateGuestOrder)
		})

		r.Post("/guest-orders/{id}/cancel", h.CancelGuestOrder)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
