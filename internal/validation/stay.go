// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/mmeshcher/smarthotel/internal/model"
)

const day = 24 * time.Hour

// ValidateStay проверяет, что обе даты заданы и выезд строго позже заезда.
func ValidateStay(checkIn, checkOut model.Date) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return fmt.Errorf("%w: check-in and check-out dates are required", model.ErrValidation)
	}
	if !checkOut.After(checkIn.Time) {
		return fmt.Errorf("%w: check-out date must be after the check-in date", model.ErrValidation)
	}
	return nil
}

// StayNights возвращает число оплачиваемых суток: модуль разницы дат, округлённый вверх, но не меньше одних.
func StayNights(checkIn, checkOut model.Date) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		return 1
	}

	diff := checkOut.Sub(checkIn.Time)
	if diff < 0 {
		diff = -diff
	}

	nights := int(math.Ceil(float64(diff) / float64(day)))
	if nights < 1 {
		return 1
	}
	return nights
}
