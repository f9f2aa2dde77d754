package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/model"
)

type fakeChannel struct {
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) IsClosed() bool { return f.closed }

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestPublisher(channels ...*fakeChannel) (*RabbitPublisher, *int) {
	dials := 0
	p := NewRabbitPublisher("amqp://test", zap.NewNop())
	p.dial = func(url, queue string) (channel, io.Closer, error) {
		if dials >= len(channels) {
			return nil, nil, errors.New("broker unreachable")
		}
		ch := channels[dials]
		dials++
		return ch, nopCloser{}, nil
	}
	return p, &dials
}

func testEvent() model.BookingConfirmedEvent {
	return model.BookingConfirmedEvent{
		BookingID:   "B-1",
		UserID:      "U-1",
		HotelID:     "H-1",
		RoomID:      "R-1",
		PaymentID:   "P-1",
		Amount:      decimal.NewFromInt(6000),
		CheckIn:     model.NewDate(2024, time.May, 1),
		CheckOut:    model.NewDate(2024, time.May, 4),
		ConfirmedAt: time.Date(2024, time.April, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishBookingConfirmed(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)

	require.NoError(t, p.PublishBookingConfirmed(context.Background(), testEvent()))
	require.NoError(t, p.PublishBookingConfirmed(context.Background(), testEvent()))

	assert.Equal(t, 1, *dials)
	require.Len(t, ch.published, 2)
	assert.Equal(t, "/"+BookingConfirmedQueue, ch.keys[0])

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "B-1", msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "P-1", body["payment_id"])
	assert.Equal(t, float64(6000), body["amount"])
	assert.Equal(t, "2024-05-01", body["checkindate"])
}

func TestPublishReconnectsAfterFailure(t *testing.T) {
	broken := &fakeChannel{publishErr: errors.New("channel/connection is not open")}
	healthy := &fakeChannel{}
	p, dials := newTestPublisher(broken, healthy)

	err := p.PublishBookingConfirmed(context.Background(), testEvent())
	require.Error(t, err)
	assert.True(t, broken.closed)

	require.NoError(t, p.PublishBookingConfirmed(context.Background(), testEvent()))
	assert.Equal(t, 2, *dials)
	assert.Len(t, healthy.published, 1)

	require.NoError(t, p.Close())
	assert.True(t, healthy.closed)
}

func TestPublishDialError(t *testing.T) {
	p, _ := newTestPublisher()

	err := p.PublishBookingConfirmed(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishBookingConfirmed(context.Background(), testEvent()))
}
