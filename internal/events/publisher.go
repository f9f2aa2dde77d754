// Package events публикует доменные события сервиса бронирования в RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/model"
)

// BookingConfirmedQueue: очередь событий о подтверждённых бронированиях.
const BookingConfirmedQueue = "booking.confirmed"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url, queue string) (channel, io.Closer, error)

// RabbitPublisher держит одно соединение с брокером и переподключается после его потери.
type RabbitPublisher struct {
	url    string
	queue  string
	logger *zap.Logger
	dial   dialFunc

	mu   sync.Mutex
	conn io.Closer
	ch   channel
}

// NewRabbitPublisher создаёт издателя. Соединение устанавливается при первой публикации.
func NewRabbitPublisher(url string, logger *zap.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		url:    url,
		queue:  BookingConfirmedQueue,
		logger: logger,
		dial:   dialRabbit,
	}
}

func dialRabbit(url, queue string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return ch, conn, nil
}

// PublishBookingConfirmed публикует событие о подтверждении бронирования как persistent-сообщение.
func (p *RabbitPublisher) PublishBookingConfirmed(ctx context.Context, event model.BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		ch, conn, err := p.dial(p.url, p.queue)
		if err != nil {
			return err
		}
		p.ch, p.conn = ch, conn
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BookingID,
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.closeLocked()
		return fmt.Errorf("publish %s: %w", p.queue, err)
	}

	return nil
}

// Close закрывает канал и соединение с брокером.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	return nil
}

func (p *RabbitPublisher) closeLocked() {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !p.ch.IsClosed() {
			p.logger.Debug("close rabbitmq channel", zap.Error(err))
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Debug("close rabbitmq connection", zap.Error(err))
		}
		p.conn = nil
	}
}

// Nop отбрасывает события, когда брокер не настроен.
type Nop struct{}

// PublishBookingConfirmed ничего не делает.
func (Nop) PublishBookingConfirmed(context.Context, model.BookingConfirmedEvent) error {
	return nil
}
