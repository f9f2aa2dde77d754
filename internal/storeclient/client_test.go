package storeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL, time.Second, zap.NewNop())
	c.SetRetryPolicy(2, time.Millisecond, 5*time.Millisecond)
	return c
}

func TestGetBooking_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/bookings/B-1" {
			t.Fatalf("path = %s, want /bookings/B-1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"booking_id":"B-1","user_id":"U-1","hotel_id":"H-1","room_id":"R-1",` +
			`"checkindate":"2024-05-01","checkoutdate":"2024-05-04T00:00:00.000Z","status":"pending","payment_id":""}`))
	})

	b, err := c.GetBooking(context.Background(), "B-1")
	require.NoError(t, err)
	assert.Equal(t, "B-1", b.ID)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, "2024-05-04", b.CheckOut.String())
}

func TestGetBooking_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"bookings B-404 not found"}`))
	})

	_, err := c.GetBooking(context.Background(), "B-404")
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "bookings B-404 not found")
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetRoom(context.Background(), "R-1")
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"room_id":"R-1","hotel_id":"H-1","type":"Deluxe","price":2000,"availability":true}`))
	})

	room, err := c.GetRoom(context.Background(), "R-1")
	require.NoError(t, err)
	assert.True(t, room.Price.Equal(decimal.NewFromInt(2000)))
	assert.True(t, room.IsAvailable())
}

func TestUnreachableStore(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := NewClient(addr, 100*time.Millisecond, zap.NewNop())
	c.SetRetryPolicy(1, time.Millisecond, time.Millisecond)

	_, err := c.GetBooking(context.Background(), "B-1")
	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestLoyaltyVersioning(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loyalty/U-1" {
			t.Fatalf("path = %s, want /loyalty/U-1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			w.Header().Set("ETag", `"4"`)
			_, _ = w.Write([]byte(`{"loyalty_id":"L-1","user_id":"U-1","pointsbalance":200,"lastupdated":"2024-05-01"}`))
		case http.MethodPatch:
			if got := r.Header.Get("If-Match"); got != `"4"` {
				w.WriteHeader(http.StatusPreconditionFailed)
				_, _ = w.Write([]byte(`{"error":"version mismatch"}`))
				return
			}
			var patch model.LoyaltyPatch
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			w.Header().Set("ETag", `"5"`)
			_ = json.NewEncoder(w).Encode(model.LoyaltyAccount{ID: "L-1", UserID: "U-1", PointsBalance: patch.PointsBalance, LastUpdated: patch.LastUpdated})
		}
	})

	ctx := context.Background()

	acc, err := c.GetLoyalty(ctx, "U-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), acc.PointsBalance)
	assert.Equal(t, int64(4), acc.Version)

	today := model.NewDate(2024, time.May, 2)
	updated, err := c.PatchLoyalty(ctx, "U-1", model.LoyaltyPatch{PointsBalance: 50, LastUpdated: today}, acc.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(50), updated.PointsBalance)
	assert.Equal(t, int64(5), updated.Version)

	_, err = c.PatchLoyalty(ctx, "U-1", model.LoyaltyPatch{PointsBalance: 0, LastUpdated: today}, 3)
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestCreatePayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payment" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q", ct)
		}

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, float64(6000), raw["amount"])
		assert.Equal(t, "B-1", raw["bookingid"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(raw)
	})

	p, err := c.CreatePayment(context.Background(), &model.Payment{
		ID:        "P-1",
		UserID:    "U-1",
		BookingID: "B-1",
		Amount:    decimal.NewFromInt(6000),
		Status:    model.PaymentStatusCompleted,
		Method:    model.DefaultPaymentMethod,
	})
	require.NoError(t, err)
	assert.Equal(t, "P-1", p.ID)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(6000)))
}

func TestCreatePayment_Duplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"document already exists"}`))
	})

	_, err := c.CreatePayment(context.Background(), &model.Payment{ID: "P-1", BookingID: "B-1"})
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestFindPaymentByBooking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payment/booking/B-1":
			_, _ = w.Write([]byte(`[{"payment_id":"P-1","bookingid":"B-1","amount":6000,"status":"completed"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})

	p, err := c.FindPaymentByBooking(context.Background(), "B-1")
	require.NoError(t, err)
	assert.Equal(t, "P-1", p.ID)

	_, err = c.FindPaymentByBooking(context.Background(), "B-2")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListBookingsByStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`[{"booking_id":"B-1","status":"pending"},{"booking_id":"B-2","status":"pending"}]`))
	})

	list, err := c.ListBookings(context.Background(), model.BookingStatusPending)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeleteRedemption(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/redemptions/RD-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteRedemption(context.Background(), "RD-1"))
}

func TestGetRedemption(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redemptions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("redemption_id") != "RD-1" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"redemption_id":"RD-1","user_id":"U-1","pointsused":150,"discountamount":150}]`))
	})

	r, err := c.GetRedemption(context.Background(), "RD-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), r.PointsUsed)

	_, err = c.GetRedemption(context.Background(), "RD-404")
	require.ErrorIs(t, err, model.ErrNotFound)
}
