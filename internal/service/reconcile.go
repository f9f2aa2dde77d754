package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/lock"
	"github.com/mmeshcher/smarthotel/internal/metrics"
	"github.com/mmeshcher/smarthotel/internal/model"
)

// StartReconciliation запускает фоновую сверку: ожидающие бронирования, для которых уже есть оплата, подтверждаются.
func (s *Service) StartReconciliation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("reconciliation pass failed", zap.Error(err))
				}
			}
		}
	}()
}

// Reconcile выполняет один проход сверки и возвращает число подтверждённых бронирований.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.store.ListBookings(ctx, model.BookingStatusPending)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, b := range pending {
		if ctx.Err() != nil {
			return linked, ctx.Err()
		}

		p, err := s.store.FindPaymentByBooking(ctx, b.ID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("reconcile: find payment", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}

		ok, err := s.linkPayment(ctx, b.ID, p)
		if err != nil {
			s.logger.Warn("reconcile: link payment", zap.String("booking_id", b.ID), zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		if ok {
			linked++
		}
	}

	return linked, nil
}

func (s *Service) linkPayment(ctx context.Context, bookingID string, p *model.Payment) (bool, error) {
	var confirmed *model.Booking
	err := s.withLock(ctx, lock.BookingKey(bookingID), func() error {
		b, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingStatusPending || b.PaymentID != "" {
			return nil
		}
		if p.UserID != "" && p.UserID != b.UserID {
			s.logger.Error("payment owner differs from booking owner",
				zap.String("booking_id", b.ID),
				zap.String("payment_id", p.ID),
			)
			return nil
		}

		confirmed, err = s.store.PatchBooking(ctx, b.ID, model.BookingPatch{
			Status:    model.BookingStatusConfirmed,
			PaymentID: p.ID,
		})
		return err
	})
	if err != nil || confirmed == nil {
		return false, err
	}

	metrics.TrackReconciled()
	s.logger.Info("booking confirmed by reconciliation", zap.String("booking_id", bookingID), zap.String("payment_id", p.ID))
	s.publishConfirmed(ctx, confirmed, p)
	return true, nil
}
