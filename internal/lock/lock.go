// Package lock сериализует операции над одним ключом: бронированием, номером или бонусным счётом.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Locker захватывает блокировку по ключу. Возвращённую функцию нужно вызвать для освобождения.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// BookingKey возвращает ключ блокировки бронирования.
func BookingKey(id string) string {
	return "booking:" + id
}

// RoomKey возвращает ключ блокировки номера.
func RoomKey(id string) string {
	return "room:" + id
}

// LoyaltyKey возвращает ключ блокировки бонусного счёта пользователя.
func LoyaltyKey(userID string) string {
	return "loyalty:" + userID
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local: блокировки в памяти процесса для одного экземпляра сервиса.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewLocal создаёт Local.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
