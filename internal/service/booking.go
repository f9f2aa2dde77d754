package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/lock"
	"github.com/mmeshcher/smarthotel/internal/metrics"
	"github.com/mmeshcher/smarthotel/internal/model"
	"github.com/mmeshcher/smarthotel/internal/validation"
)

// CreateBooking создаёт бронирование в статусе pending. Номер должен быть открыт и свободен на выбранные даты.
func (s *Service) CreateBooking(ctx context.Context, userID, hotelID, roomID string, checkIn, checkOut model.Date) (*model.Booking, error) {
	if userID == "" || hotelID == "" || roomID == "" {
		return nil, fmt.Errorf("%w: user, hotel and room are required", model.ErrValidation)
	}
	if err := validation.ValidateStay(checkIn, checkOut); err != nil {
		return nil, err
	}

	var created *model.Booking
	err := s.withLock(ctx, lock.RoomKey(roomID), func() error {
		room, err := s.store.GetRoom(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room %s: %w", roomID, err)
		}
		if room.HotelID != "" && room.HotelID != hotelID {
			return fmt.Errorf("%w: room %s does not belong to hotel %s", model.ErrValidation, roomID, hotelID)
		}
		if !room.IsAvailable() {
			return fmt.Errorf("room %s: %w", roomID, model.ErrRoomUnavailable)
		}

		existing, err := s.store.ListRoomBookings(ctx, roomID)
		if err != nil {
			return fmt.Errorf("list bookings of room %s: %w", roomID, err)
		}
		for _, b := range existing {
			if b.Status.Active() && b.Overlaps(checkIn, checkOut) {
				return fmt.Errorf("room %s overlaps booking %s: %w", roomID, b.ID, model.ErrRoomUnavailable)
			}
		}

		created, err = s.insertBooking(ctx, &model.Booking{
			ID:       s.newID(model.BookingIDPrefix),
			UserID:   userID,
			HotelID:  hotelID,
			RoomID:   roomID,
			CheckIn:  checkIn,
			CheckOut: checkOut,
			Status:   model.BookingStatusPending,
		})
		return err
	})
	metrics.TrackBooking("create", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.String("user_id", userID),
		zap.String("room_id", roomID),
	)
	return created, nil
}

// insertBooking сохраняет бронирование. Конфликт по собственному идентификатору означает, что повторённый запрос уже записал его.
func (s *Service) insertBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	created, err := s.store.CreateBooking(ctx, b)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, model.ErrConflict) {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	stored, getErr := s.store.GetBooking(ctx, b.ID)
	if getErr != nil || stored.UserID != b.UserID || stored.RoomID != b.RoomID {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return stored, nil
}

// ownedBooking возвращает бронирование пользователя. Чужое бронирование неотличимо от отсутствующего.
func (s *Service) ownedBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking id is required", model.ErrValidation)
	}

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if b.UserID != userID {
		return nil, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
	}
	return b, nil
}

// ListUserBookings возвращает бронирования пользователя вместе с оплаченными суммами.
func (s *Service) ListUserBookings(ctx context.Context, userID string) ([]model.BookingView, error) {
	bookings, err := s.store.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %s: %w", userID, err)
	}
	if len(bookings) == 0 {
		return []model.BookingView{}, nil
	}

	payments, err := s.store.ListUserPayments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments of user %s: %w", userID, err)
	}

	amounts := make(map[string]decimal.Decimal, len(payments))
	for _, p := range payments {
		amounts[p.BookingID] = p.Amount
	}

	views := make([]model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		v := model.BookingView{Booking: b}
		if amount, ok := amounts[b.ID]; ok {
			v.Amount = &amount
		}
		views = append(views, v)
	}
	return views, nil
}

// ListBookings возвращает все бронирования, при непустом status только с этим статусом.
func (s *Service) ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown booking status %q", model.ErrValidation, status)
	}

	bookings, err := s.store.ListBookings(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// CancelBooking отменяет бронирование пользователя в статусе pending или confirmed.
func (s *Service) CancelBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	var cancelled *model.Booking
	err := s.withLock(ctx, lock.BookingKey(bookingID), func() error {
		b, err := s.ownedBooking(ctx, userID, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(model.BookingStatusCancelled) {
			return fmt.Errorf("%w: booking %s is %s", model.ErrConflict, bookingID, b.Status)
		}
		if b.Status == model.BookingStatusPending {
			if err := s.dropOrphanPayment(ctx, bookingID); err != nil {
				return err
			}
		}

		cancelled, err = s.store.PatchBooking(ctx, bookingID, model.BookingPatch{Status: model.BookingStatusCancelled})
		if err != nil {
			return fmt.Errorf("cancel booking %s: %w", bookingID, err)
		}
		return nil
	})
	metrics.TrackBooking("cancel", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", bookingID), zap.String("user_id", userID))
	return cancelled, nil
}

// dropOrphanPayment удаляет оплату, оставшуюся у неподтверждённого бронирования, чтобы она не пережила его отмену.
func (s *Service) dropOrphanPayment(ctx context.Context, bookingID string) error {
	p, err := s.store.FindPaymentByBooking(ctx, bookingID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find payment of booking %s: %w", bookingID, err)
	}

	err = s.store.DeletePayment(ctx, p.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("delete payment %s of booking %s: %w", p.ID, bookingID, err)
	}
	metrics.TrackCompensation("payment", nil)
	s.logger.Warn("orphan payment removed on cancel", zap.String("booking_id", bookingID), zap.String("payment_id", p.ID))
	return nil
}
