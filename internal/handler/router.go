package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/smarthotel/internal/metrics"
	custommiddleware "github.com/mmeshcher/smarthotel/internal/middleware"
	"github.com/mmeshcher/smarthotel/internal/model"
)

const requestTimeout = 30 * time.Second

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бронирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/bookings", h.CreateBooking)
				r.Get("/bookings", h.GetBookings)
				r.Post("/bookings/{bookingID}/payment", h.PayBooking)
				r.Post("/bookings/{bookingID}/cancel", h.CancelBooking)

				r.Get("/loyalty", h.GetLoyalty)
				r.Post("/loyalty/redeem", h.Redeem)

				r.With(custommiddleware.RequireRole(model.RoleAdmin, model.RoleHotelManager)).
					Get("/manage/bookings", h.ManageBookings)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
