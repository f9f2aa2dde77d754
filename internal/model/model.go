// Package model содержит доменные сущности сервиса бронирования отелей.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Хранилище и клиенты ожидают денежные суммы числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
}

// PointValue: стоимость одного бонусного балла в валюте оплаты.
var PointValue = decimal.NewFromInt(1)

// DefaultPaymentMethod используется, если клиент не указал способ оплаты.
const DefaultPaymentMethod = "Credit Card"

// Роли пользователей.
const (
	RoleUser         = "user"
	RoleAdmin        = "admin"
	RoleHotelManager = "hotelmanager"
)

// Booking описывает бронирование номера пользователем.
type Booking struct {
	ID        string        `json:"booking_id"`
	UserID    string        `json:"user_id"`
	HotelID   string        `json:"hotel_id"`
	RoomID    string        `json:"room_id"`
	CheckIn   Date          `json:"checkindate"`
	CheckOut  Date          `json:"checkoutdate"`
	Status    BookingStatus `json:"status"`
	PaymentID string        `json:"payment_id,omitempty"`
}

// Overlaps сообщает, пересекается ли проживание по бронированию с интервалом [checkIn, checkOut).
func (b Booking) Overlaps(checkIn, checkOut Date) bool {
	return b.CheckIn.Before(checkOut.Time) && checkIn.Before(b.CheckOut.Time)
}

// BookingPatch содержит изменяемые поля бронирования.
type BookingPatch struct {
	Status    BookingStatus `json:"status,omitempty"`
	PaymentID string        `json:"payment_id,omitempty"`
}

// BookingView: бронирование вместе с оплаченной суммой.
type BookingView struct {
	Booking
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Room описывает номер отеля.
type Room struct {
	ID           string          `json:"room_id"`
	HotelID      string          `json:"hotel_id,omitempty"`
	Type         string          `json:"type"`
	Price        decimal.Decimal `json:"price"`
	Availability *bool           `json:"availability,omitempty"`
	Features     []string        `json:"features,omitempty"`
	Total        int             `json:"total,omitempty"`
}

// IsAvailable сообщает, открыт ли номер для бронирования. Отсутствующий флаг считается открытым.
func (r Room) IsAvailable() bool {
	return r.Availability == nil || *r.Availability
}

// Payment описывает оплату бронирования.
type Payment struct {
	ID        string          `json:"payment_id"`
	UserID    string          `json:"user_id"`
	BookingID string          `json:"bookingid"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Method    string          `json:"paymentmethod"`
}

// LoyaltyAccount описывает бонусный счёт пользователя.
type LoyaltyAccount struct {
	ID            string `json:"loyalty_id,omitempty"`
	UserID        string `json:"user_id"`
	PointsBalance int64  `json:"pointsbalance"`
	LastUpdated   Date   `json:"lastupdated"`

	// LastRedemptionID: списание, которым баланс изменён последним.
	LastRedemptionID string `json:"last_redemption_id,omitempty"`

	// Version: версия документа в хранилище, передаётся через ETag.
	Version int64 `json:"-"`
}

// LoyaltyPatch содержит изменяемые поля бонусного счёта.
type LoyaltyPatch struct {
	PointsBalance    int64  `json:"pointsbalance"`
	LastUpdated      Date   `json:"lastupdated"`
	LastRedemptionID string `json:"last_redemption_id"`
}

// Redemption описывает списание бонусных баллов.
type Redemption struct {
	ID             string          `json:"redemption_id"`
	UserID         string          `json:"user_id"`
	BookingID      string          `json:"booking_id,omitempty"`
	PointsUsed     int64           `json:"pointsused"`
	DiscountAmount decimal.Decimal `json:"discountamount"`
}

// LoyaltySummary: бонусный счёт и история списаний.
type LoyaltySummary struct {
	Account     LoyaltyAccount `json:"account"`
	Redemptions []Redemption   `json:"redemptions"`
}

// User описывает пользователя системы.
type User struct {
	ID        string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	Role      string `json:"role"`
	ContactNo string `json:"contactNo,omitempty"`
	Status    string `json:"status,omitempty"`
}

// BookingConfirmedEvent публикуется после подтверждения бронирования оплатой.
type BookingConfirmedEvent struct {
	BookingID   string          `json:"booking_id"`
	UserID      string          `json:"user_id"`
	HotelID     string          `json:"hotel_id"`
	RoomID      string          `json:"room_id"`
	PaymentID   string          `json:"payment_id"`
	Amount      decimal.Decimal `json:"amount"`
	CheckIn     Date            `json:"checkindate"`
	CheckOut    Date            `json:"checkoutdate"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}
