// Package service реализует бизнес-логику сервиса бронирования отелей: бронирования, оплату,
// бонусную программу и учётные записи.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/smarthotel/internal/lock"
	"github.com/mmeshcher/smarthotel/internal/model"
)

const compensationTimeout = 5 * time.Second

// Store описывает контракт доступа к хранилищу ресурсов, используемый сервисом.
type Store interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error)
	PatchBooking(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error)
	ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error)
	ListRoomBookings(ctx context.Context, roomID string) ([]model.Booking, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)

	CreatePayment(ctx context.Context, p *model.Payment) (*model.Payment, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	FindPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error)
	ListUserPayments(ctx context.Context, userID string) ([]model.Payment, error)
	DeletePayment(ctx context.Context, id string) error

	GetLoyalty(ctx context.Context, userID string) (*model.LoyaltyAccount, error)
	PatchLoyalty(ctx context.Context, userID string, patch model.LoyaltyPatch, version int64) (*model.LoyaltyAccount, error)
	CreateRedemption(ctx context.Context, r *model.Redemption) (*model.Redemption, error)
	GetRedemption(ctx context.Context, id string) (*model.Redemption, error)
	ListRedemptions(ctx context.Context, userID string) ([]model.Redemption, error)
	DeleteRedemption(ctx context.Context, id string) error

	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event model.BookingConfirmedEvent) error
}

// Service содержит бизнес-логику сервиса бронирования.
type Service struct {
	store     Store
	locker    lock.Locker
	publisher Publisher
	logger    *zap.Logger

	now            func() time.Time
	newID          func(prefix string) string
	loyaltyBackoff func() retry.Backoff
	bcryptCost     int
}

// NewService создаёт сервис поверх хранилища, блокировок и издателя событий.
func NewService(store Store, locker lock.Locker, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     model.NewID,
		loyaltyBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.WithJitter(10*time.Millisecond, retry.NewExponential(20*time.Millisecond)))
		},
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer unlock()

	return fn()
}

// detached возвращает контекст для компенсирующих записей, которые должны завершиться даже после отмены запроса.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
