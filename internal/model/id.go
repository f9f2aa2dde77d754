package model

import "github.com/google/uuid"

// Префиксы идентификаторов, которые назначает сервис.
const (
	BookingIDPrefix    = "B"
	PaymentIDPrefix    = "P"
	RedemptionIDPrefix = "RD"
	UserIDPrefix       = "U"
)

// NewID возвращает уникальный идентификатор с указанным префиксом.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
