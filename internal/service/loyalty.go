package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/lock"
	"github.com/mmeshcher/smarthotel/internal/metrics"
	"github.com/mmeshcher/smarthotel/internal/model"
)

// Redeem списывает баллы с бонусного счёта пользователя и сохраняет запись о списании.
// Непустой bookingID должен указывать на бронирование этого пользователя.
func (s *Service) Redeem(ctx context.Context, userID string, points int64, bookingID string) (*model.Redemption, error) {
	if points <= 0 {
		return nil, fmt.Errorf("%w: points must be positive", model.ErrValidation)
	}
	if bookingID != "" {
		if _, err := s.ownedBooking(ctx, userID, bookingID); err != nil {
			return nil, err
		}
	}

	var redemption *model.Redemption
	err := s.withLock(ctx, lock.LoyaltyKey(userID), func() error {
		acc, err := s.store.GetLoyalty(ctx, userID)
		if err != nil {
			return fmt.Errorf("get loyalty account of %s: %w", userID, err)
		}
		if points > acc.PointsBalance {
			return fmt.Errorf("%w: balance %d, requested %d", model.ErrInsufficientPoints, acc.PointsBalance, points)
		}

		created, err := s.insertRedemption(ctx, &model.Redemption{
			ID:             s.newID(model.RedemptionIDPrefix),
			UserID:         userID,
			BookingID:      bookingID,
			PointsUsed:     points,
			DiscountAmount: model.PointValue.Mul(decimal.NewFromInt(points)),
		})
		if err != nil {
			return err
		}

		if err := s.debit(ctx, acc, points, created.ID); err != nil {
			if !s.debitApplied(ctx, userID, created.ID, err) {
				return s.compensateRedemption(ctx, created.ID, err)
			}
		}

		redemption = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TrackRedemption(points)
	s.logger.Info("points redeemed",
		zap.String("user_id", userID),
		zap.Int64("points", points),
		zap.String("redemption_id", redemption.ID),
	)
	return redemption, nil
}

// insertRedemption сохраняет списание. Конфликт по собственному идентификатору означает, что повторённый запрос уже записал его.
func (s *Service) insertRedemption(ctx context.Context, r *model.Redemption) (*model.Redemption, error) {
	created, err := s.store.CreateRedemption(ctx, r)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, model.ErrConflict) {
		return nil, fmt.Errorf("create redemption: %w", err)
	}

	stored, getErr := s.store.GetRedemption(ctx, r.ID)
	if getErr != nil || stored.UserID != r.UserID || stored.PointsUsed != r.PointsUsed {
		return nil, fmt.Errorf("create redemption: %w", err)
	}
	return stored, nil
}

// debit уменьшает баланс с проверкой версии счёта и помечает счёт идентификатором списания.
// При конфликте версий счёт перечитывается: если метка уже стоит, запись прошла раньше и повторно баллы не списываются.
func (s *Service) debit(ctx context.Context, acc *model.LoyaltyAccount, points int64, redemptionID string) error {
	current := acc

	return retry.Do(ctx, s.loyaltyBackoff(), func(ctx context.Context) error {
		if current == nil {
			fresh, err := s.store.GetLoyalty(ctx, acc.UserID)
			if err != nil {
				return fmt.Errorf("reload loyalty account: %w", err)
			}
			if fresh.LastRedemptionID == redemptionID {
				return nil
			}
			current = fresh
		}
		if points > current.PointsBalance {
			return fmt.Errorf("%w: balance %d, requested %d", model.ErrInsufficientPoints, current.PointsBalance, points)
		}

		_, err := s.store.PatchLoyalty(ctx, current.UserID, model.LoyaltyPatch{
			PointsBalance:    current.PointsBalance - points,
			LastUpdated:      model.DateOf(s.now()),
			LastRedemptionID: redemptionID,
		}, current.Version)
		if errors.Is(err, model.ErrConflict) {
			current = nil
			return retry.RetryableError(err)
		}
		if err != nil {
			return fmt.Errorf("update loyalty balance: %w", err)
		}
		return nil
	})
}

// debitApplied перечитывает счёт после неудачного списания: запись могла пройти, а ответ потеряться.
func (s *Service) debitApplied(ctx context.Context, userID, redemptionID string, cause error) bool {
	if errors.Is(cause, model.ErrInsufficientPoints) {
		return false
	}

	cctx, cancel := detached(ctx)
	defer cancel()

	acc, err := s.store.GetLoyalty(cctx, userID)
	if err != nil || acc.LastRedemptionID != redemptionID {
		return false
	}

	s.logger.Warn("balance update confirmed after error",
		zap.String("redemption_id", redemptionID),
		zap.Error(cause),
	)
	return true
}

func (s *Service) compensateRedemption(ctx context.Context, redemptionID string, cause error) error {
	cctx, cancel := detached(ctx)
	defer cancel()

	delErr := s.store.DeleteRedemption(cctx, redemptionID)
	if errors.Is(delErr, model.ErrNotFound) {
		delErr = nil
	}
	metrics.TrackCompensation("redemption", delErr)
	if delErr != nil {
		s.logger.Error("redemption compensation failed",
			zap.String("redemption_id", redemptionID),
			zap.NamedError("cause", cause),
			zap.Error(delErr),
		)
		return fmt.Errorf("%w: redemption %s kept without balance update: %w (delete: %v)",
			model.ErrInconsistentState, redemptionID, cause, delErr)
	}

	if !errors.Is(cause, model.ErrInsufficientPoints) {
		s.logger.Warn("redemption compensated", zap.String("redemption_id", redemptionID), zap.Error(cause))
	}
	return cause
}

// GetLoyalty возвращает бонусный счёт пользователя и историю списаний.
func (s *Service) GetLoyalty(ctx context.Context, userID string) (*model.LoyaltySummary, error) {
	acc, err := s.store.GetLoyalty(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get loyalty account of %s: %w", userID, err)
	}

	redemptions, err := s.store.ListRedemptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions of %s: %w", userID, err)
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}

	return &model.LoyaltySummary{
		Account:     *acc,
		Redemptions: redemptions,
	}, nil
}
