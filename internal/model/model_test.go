package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{
			name:  "date only",
			input: "2025-08-10",
			want:  NewDate(2025, time.August, 10),
		},
		{
			name:  "rfc3339 truncated to day",
			input: "2025-08-10T15:04:05Z",
			want:  NewDate(2025, time.August, 10),
		},
		{
			name:    "garbage",
			input:   "10/08/2025",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDateJSON(t *testing.T) {
	b := Booking{
		ID:       "B-1",
		CheckIn:  NewDate(2025, time.March, 1),
		CheckOut: NewDate(2025, time.March, 4),
		Status:   BookingStatusPending,
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"checkindate":"2025-03-01"`)
	assert.Contains(t, string(data), `"checkoutdate":"2025-03-04"`)
	assert.NotContains(t, string(data), "payment_id")

	var decoded Booking
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b.CheckIn.String(), decoded.CheckIn.String())

	var empty Booking
	require.NoError(t, json.Unmarshal([]byte(`{"checkindate":"","checkoutdate":null}`), &empty))
	assert.True(t, empty.CheckIn.IsZero())
	assert.True(t, empty.CheckOut.IsZero())
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	p := Payment{ID: "P-1", Amount: decimal.NewFromInt(6000)}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"amount":6000`), string(data))
}

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		ok   bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCheckedIn, true},
		{BookingStatusCheckedIn, BookingStatusCompleted, true},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusPending, BookingStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.False(t, BookingStatus("unknown").Valid())
	assert.True(t, BookingStatusCheckedIn.Valid())
}

func TestBookingOverlaps(t *testing.T) {
	b := Booking{
		CheckIn:  NewDate(2025, time.May, 10),
		CheckOut: NewDate(2025, time.May, 13),
	}

	assert.True(t, b.Overlaps(NewDate(2025, time.May, 12), NewDate(2025, time.May, 14)))
	assert.True(t, b.Overlaps(NewDate(2025, time.May, 9), NewDate(2025, time.May, 11)))
	assert.False(t, b.Overlaps(NewDate(2025, time.May, 13), NewDate(2025, time.May, 15)), "check-out day is free")
	assert.False(t, b.Overlaps(NewDate(2025, time.May, 7), NewDate(2025, time.May, 10)))
}

func TestNewID(t *testing.T) {
	a := NewID(BookingIDPrefix)
	b := NewID(BookingIDPrefix)

	assert.True(t, strings.HasPrefix(a, "B-"))
	assert.NotEqual(t, a, b)
}
