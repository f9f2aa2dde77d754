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

// Pay оплачивает бронирование пользователя и подтверждает его. Второй результат сообщает, создана ли новая оплата.
// Повторный вызов для подтверждённого бронирования возвращает существующую оплату.
func (s *Service) Pay(ctx context.Context, userID, bookingID, method string) (*model.Payment, bool, error) {
	if method == "" {
		method = model.DefaultPaymentMethod
	}

	var (
		payment   *model.Payment
		created   bool
		confirmed *model.Booking
	)

	err := s.withLock(ctx, lock.BookingKey(bookingID), func() error {
		b, err := s.ownedBooking(ctx, userID, bookingID)
		if err != nil {
			return err
		}

		switch {
		case b.Status == model.BookingStatusConfirmed && b.PaymentID != "":
			payment, err = s.store.GetPayment(ctx, b.PaymentID)
			if err != nil {
				return fmt.Errorf("get payment %s: %w", b.PaymentID, err)
			}
			return nil
		case b.Status != model.BookingStatusPending:
			return fmt.Errorf("%w: booking %s is %s", model.ErrConflict, bookingID, b.Status)
		}

		room, err := s.store.GetRoom(ctx, b.RoomID)
		if err != nil {
			return fmt.Errorf("get room %s: %w", b.RoomID, err)
		}
		amount := room.Price.Mul(decimal.NewFromInt(int64(validation.StayNights(b.CheckIn, b.CheckOut))))

		p, isNew, err := s.obtainPayment(ctx, b, amount, method)
		if err != nil {
			return err
		}

		updated, err := s.store.PatchBooking(ctx, b.ID, model.BookingPatch{
			Status:    model.BookingStatusConfirmed,
			PaymentID: p.ID,
		})
		if err != nil {
			if !isNew {
				return fmt.Errorf("confirm booking %s: %w", b.ID, err)
			}
			return s.compensatePayment(ctx, b.ID, p.ID, err)
		}

		payment, created, confirmed = p, isNew, updated
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	metrics.TrackPayment(created)
	if confirmed != nil {
		s.logger.Info("booking confirmed",
			zap.String("booking_id", confirmed.ID),
			zap.String("payment_id", payment.ID),
			zap.String("amount", payment.Amount.String()),
		)
		s.publishConfirmed(ctx, confirmed, payment)
	}

	return payment, created, nil
}

// obtainPayment возвращает оплату бронирования, создавая её, только если в хранилище её ещё нет.
func (s *Service) obtainPayment(ctx context.Context, b *model.Booking, amount decimal.Decimal, method string) (*model.Payment, bool, error) {
	existing, err := s.store.FindPaymentByBooking(ctx, b.ID)
	if err == nil {
		s.logger.Warn("reusing payment left by an unfinished confirmation",
			zap.String("booking_id", b.ID),
			zap.String("payment_id", existing.ID),
		)
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, fmt.Errorf("find payment of booking %s: %w", b.ID, err)
	}

	p := &model.Payment{
		ID:        s.newID(model.PaymentIDPrefix),
		UserID:    b.UserID,
		BookingID: b.ID,
		Amount:    amount,
		Status:    model.PaymentStatusCompleted,
		Method:    method,
	}

	created, err := s.store.CreatePayment(ctx, p)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, model.ErrConflict) {
		return nil, false, fmt.Errorf("create payment: %w", err)
	}

	existing, findErr := s.store.FindPaymentByBooking(ctx, b.ID)
	if findErr != nil {
		return nil, false, fmt.Errorf("create payment: %w", err)
	}
	return existing, existing.ID == p.ID, nil
}

func (s *Service) compensatePayment(ctx context.Context, bookingID, paymentID string, cause error) error {
	cctx, cancel := detached(ctx)
	defer cancel()

	delErr := s.store.DeletePayment(cctx, paymentID)
	if errors.Is(delErr, model.ErrNotFound) {
		delErr = nil
	}
	metrics.TrackCompensation("payment", delErr)
	if delErr != nil {
		s.logger.Error("payment compensation failed",
			zap.String("booking_id", bookingID),
			zap.String("payment_id", paymentID),
			zap.NamedError("cause", cause),
			zap.Error(delErr),
		)
		return fmt.Errorf("%w: payment %s kept for unconfirmed booking %s: %w (delete: %v)",
			model.ErrInconsistentState, paymentID, bookingID, cause, delErr)
	}

	s.logger.Warn("payment compensated", zap.String("booking_id", bookingID), zap.String("payment_id", paymentID), zap.Error(cause))
	return fmt.Errorf("confirm booking %s: %w", bookingID, cause)
}

func (s *Service) publishConfirmed(ctx context.Context, b *model.Booking, p *model.Payment) {
	pctx, cancel := detached(ctx)
	defer cancel()

	event := model.BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		HotelID:     b.HotelID,
		RoomID:      b.RoomID,
		PaymentID:   p.ID,
		Amount:      p.Amount,
		CheckIn:     b.CheckIn,
		CheckOut:    b.CheckOut,
		ConfirmedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishBookingConfirmed(pctx, event); err != nil {
		s.logger.Warn("publish booking.confirmed failed", zap.String("booking_id", b.ID), zap.Error(err))
	}
}
