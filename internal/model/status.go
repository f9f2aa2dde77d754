package model

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCheckedIn BookingStatus = "checked-in"
	BookingStatusCompleted BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCancelled},
	BookingStatusCheckedIn: {BookingStatusCompleted},
}

// Valid сообщает, является ли статус одним из известных.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled,
		BookingStatusCheckedIn, BookingStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo сообщает, допустим ли переход бронирования в статус next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active сообщает, занимает ли бронирование номер.
func (s BookingStatus) Active() bool {
	return s != BookingStatusCancelled && s != BookingStatusCompleted
}

// PaymentStatus описывает статус оплаты.
type PaymentStatus string

const PaymentStatusCompleted PaymentStatus = "completed"
