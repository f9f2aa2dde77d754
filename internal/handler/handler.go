// Package handler содержит HTTP-обработчики API сервиса бронирования отелей.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/middleware"
	"github.com/mmeshcher/smarthotel/internal/model"
	"github.com/mmeshcher/smarthotel/internal/validation"
)

const retryAfterSeconds = "5"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password, contactNo, role string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password, role string) (*model.User, error)
	CreateBooking(ctx context.Context, userID, hotelID, roomID string, checkIn, checkOut model.Date) (*model.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]model.BookingView, error)
	ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error)
	Pay(ctx context.Context, userID, bookingID, method string) (*model.Payment, bool, error)
	Redeem(ctx context.Context, userID string, points int64, bookingID string) (*model.Redemption, error)
	GetLoyalty(ctx context.Context, userID string) (*model.LoyaltySummary, error)
}

// Handler реализует HTTP-обработчики API сервиса бронирования.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	ContactNo string `json:"contactNo"`
	Role      string `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	u, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password, req.ContactNo, req.Role)
	if err != nil {
		h.writeServiceError(w, err, "register user")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login выполняет аутентификацию пользователя, устанавливает cookie и возвращает токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.writeServiceError(w, err, "login user")
		return
	}

	token, err := h.authMiddleware.SetAuthCookie(w, u.ID, u.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.String("user_id", u.ID))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

type createBookingRequest struct {
	HotelID  string     `json:"hotel_id" validate:"required"`
	RoomID   string     `json:"room_id" validate:"required"`
	CheckIn  model.Date `json:"checkindate"`
	CheckOut model.Date `json:"checkoutdate"`
}

// CreateBooking создаёт бронирование текущего пользователя.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req createBookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.service.CreateBooking(r.Context(), userID, req.HotelID, req.RoomID, req.CheckIn, req.CheckOut)
	if err != nil {
		h.writeServiceError(w, err, "create booking")
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// GetBookings возвращает бронирования текущего пользователя с оплаченными суммами.
func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	bookings, err := h.service.ListUserBookings(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list bookings")
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}

type payRequest struct {
	Method string `json:"paymentmethod"`
}

// PayBooking оплачивает бронирование. Новая оплата отвечает 201, повтор для оплаченного бронирования 200.
func (h *Handler) PayBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, created, err := h.service.Pay(r.Context(), userID, chi.URLParam(r, "bookingID"), req.Method)
	if err != nil {
		h.writeServiceError(w, err, "pay booking")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// CancelBooking отменяет бронирование текущего пользователя.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	b, err := h.service.CancelBooking(r.Context(), userID, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeServiceError(w, err, "cancel booking")
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// GetLoyalty возвращает бонусный счёт текущего пользователя и историю списаний.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	summary, err := h.service.GetLoyalty(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get loyalty")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type redeemRequest struct {
	Points    int64  `json:"points" validate:"gt=0"`
	BookingID string `json:"booking_id"`
}

// Redeem списывает бонусные баллы текущего пользователя.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req redeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	redemption, err := h.service.Redeem(r.Context(), userID, req.Points, req.BookingID)
	if err != nil {
		h.writeServiceError(w, err, "redeem points")
		return
	}

	writeJSON(w, http.StatusCreated, redemption)
}

// ManageBookings возвращает все бронирования для администратора и менеджера отеля.
func (h *Handler) ManageBookings(w http.ResponseWriter, r *http.Request) {
	status := model.BookingStatus(r.URL.Query().Get("status"))

	bookings, err := h.service.ListBookings(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, err, "manage bookings")
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}

// decode разбирает JSON-тело и проверяет теги validate. При ошибке ответ уже записан.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validation.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, model.ErrInconsistentState):
		h.logger.Error(op+": inconsistent state", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, model.ErrInvalidCredentials.Error())
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInsufficientPoints):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, model.ErrRoomUnavailable), errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrUpstreamUnavailable):
		h.logger.Warn(op+": store unavailable", zap.Error(err))
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, model.ErrUpstreamUnavailable.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op+": timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, http.StatusText(http.StatusGatewayTimeout))
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
