package storeclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mmeshcher/smarthotel/internal/model"
)

// GetBooking возвращает бронирование по идентификатору.
func (c *Client) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if _, err := c.do(ctx, request{operation: "get_booking", method: http.MethodGet, path: path("bookings", id)}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking сохраняет новое бронирование.
func (c *Client) CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	var created model.Booking
	if _, err := c.do(ctx, request{operation: "create_booking", method: http.MethodPost, path: "/bookings", body: b}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PatchBooking меняет статус бронирования и ссылку на оплату.
func (c *Client) PatchBooking(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	var b model.Booking
	if _, err := c.do(ctx, request{operation: "patch_booking", method: http.MethodPatch, path: path("bookings", id), body: patch}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings возвращает все бронирования, при непустом status только с этим статусом.
func (c *Client) ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	p := "/bookings"
	if status != "" {
		p += "?" + url.Values{"status": {string(status)}}.Encode()
	}

	var list []model.Booking
	if _, err := c.do(ctx, request{operation: "list_bookings", method: http.MethodGet, path: p}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListUserBookings возвращает бронирования пользователя.
func (c *Client) ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	var list []model.Booking
	if _, err := c.do(ctx, request{operation: "list_user_bookings", method: http.MethodGet, path: path("bookings", "user", userID)}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListRoomBookings возвращает бронирования номера.
func (c *Client) ListRoomBookings(ctx context.Context, roomID string) ([]model.Booking, error) {
	var list []model.Booking
	if _, err := c.do(ctx, request{operation: "list_room_bookings", method: http.MethodGet, path: path("bookings", "room", roomID)}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetRoom возвращает номер по идентификатору.
func (c *Client) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var r model.Room
	if _, err := c.do(ctx, request{operation: "get_room", method: http.MethodGet, path: path("rooms", id)}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreatePayment сохраняет оплату. Повторное создание оплаты того же бронирования завершается ErrConflict.
func (c *Client) CreatePayment(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	var created model.Payment
	if _, err := c.do(ctx, request{operation: "create_payment", method: http.MethodPost, path: "/payment", body: p}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPayment возвращает оплату по идентификатору.
func (c *Client) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	var p model.Payment
	if _, err := c.do(ctx, request{operation: "get_payment", method: http.MethodGet, path: path("payment", id)}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPaymentByBooking возвращает оплату бронирования или ErrNotFound.
func (c *Client) FindPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	var list []model.Payment
	if _, err := c.do(ctx, request{operation: "find_payment_by_booking", method: http.MethodGet, path: path("payment", "booking", bookingID)}, &list); err != nil {
		return nil, err
	}
	return first(list, "payment for booking "+bookingID)
}

// ListUserPayments возвращает оплаты пользователя.
func (c *Client) ListUserPayments(ctx context.Context, userID string) ([]model.Payment, error) {
	var list []model.Payment
	if _, err := c.do(ctx, request{operation: "list_user_payments", method: http.MethodGet, path: path("payment", "user", userID)}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeletePayment удаляет оплату.
func (c *Client) DeletePayment(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{operation: "delete_payment", method: http.MethodDelete, path: path("payment", id)}, nil)
	return err
}

// GetLoyalty возвращает бонусный счёт пользователя вместе с версией документа.
func (c *Client) GetLoyalty(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	var acc model.LoyaltyAccount
	version, err := c.do(ctx, request{operation: "get_loyalty", method: http.MethodGet, path: path("loyalty", userID)}, &acc)
	if err != nil {
		return nil, err
	}
	acc.Version = version
	return &acc, nil
}

// PatchLoyalty обновляет бонусный счёт, если его версия в хранилище равна version. Иначе возвращает ErrConflict.
func (c *Client) PatchLoyalty(ctx context.Context, userID string, patch model.LoyaltyPatch, version int64) (*model.LoyaltyAccount, error) {
	var acc model.LoyaltyAccount
	newVersion, err := c.do(ctx, request{
		operation: "patch_loyalty",
		method:    http.MethodPatch,
		path:      path("loyalty", userID),
		body:      patch,
		ifMatch:   version,
	}, &acc)
	if err != nil {
		return nil, err
	}
	acc.Version = newVersion
	return &acc, nil
}

// CreateRedemption сохраняет списание баллов.
func (c *Client) CreateRedemption(ctx context.Context, r *model.Redemption) (*model.Redemption, error) {
	var created model.Redemption
	if _, err := c.do(ctx, request{operation: "create_redemption", method: http.MethodPost, path: "/redemptions", body: r}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetRedemption возвращает списание по идентификатору.
func (c *Client) GetRedemption(ctx context.Context, id string) (*model.Redemption, error) {
	var list []model.Redemption
	p := "/redemptions?" + url.Values{"redemption_id": {id}}.Encode()
	if _, err := c.do(ctx, request{operation: "get_redemption", method: http.MethodGet, path: p}, &list); err != nil {
		return nil, err
	}
	return first(list, "redemption "+id)
}

// ListRedemptions возвращает историю списаний пользователя.
func (c *Client) ListRedemptions(ctx context.Context, userID string) ([]model.Redemption, error) {
	var list []model.Redemption
	if _, err := c.do(ctx, request{operation: "list_redemptions", method: http.MethodGet, path: path("redemptions", userID)}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteRedemption удаляет списание.
func (c *Client) DeleteRedemption(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{operation: "delete_redemption", method: http.MethodDelete, path: path("redemptions", id)}, nil)
	return err
}

// FindUserByEmail возвращает пользователя с указанной почтой или ErrNotFound.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var list []model.User
	p := "/users?" + url.Values{"email": {email}}.Encode()
	if _, err := c.do(ctx, request{operation: "find_user_by_email", method: http.MethodGet, path: p}, &list); err != nil {
		return nil, err
	}
	return first(list, "user "+email)
}

// CreateUser сохраняет пользователя. Занятая почта возвращает ErrConflict.
func (c *Client) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	var created model.User
	if _, err := c.do(ctx, request{operation: "create_user", method: http.MethodPost, path: "/users", body: u}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
