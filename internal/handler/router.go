package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/rewearhq/rewear-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса ReWear.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/products", h.GetAvailableProducts)
		r.Get("/products/{pid}", h.GetProduct)
		r.Get("/users/{uid}/rating", h.GetUserRating)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/profile", h.GetProfile)
			r.Get("/user/balance", h.GetBalance)
			r.Get("/user/points", h.GetPointTransactions)
			r.Get("/user/products", h.GetUserProducts)
			r.Get("/user/transactions", h.GetUserTransactions)
			r.Get("/user/notifications", h.GetNotifications)
			r.Post("/user/notifications/{id}/read", h.MarkNotificationRead)

			r.Post("/products", h.CreateProduct)
			r.Post("/products/{pid}/images", h.AddProductImage)
			r.Post("/products/{pid}/approve", h.ApproveProduct)

			r.Post("/transactions/swap", h.CreateSwap)
			r.Post("/transactions/redemption", h.CreateRedemption)
			r.Post("/transactions/{tid}/accept", h.AcceptTransaction)
			r.Post("/transactions/{tid}/complete", h.CompleteTransaction)
			r.Post("/transactions/{tid}/reject", h.RejectTransaction)
			r.Post("/transactions/{tid}/feedback", h.CreateFeedback)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
