package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationStatus_CanBeModified(t *testing.T) {
	tests := []struct {
		status ReservationStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusCancelled, false},
		{StatusCompleted, false},
		{StatusNoShow, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.CanBeModified())
		})
	}
}

func TestParseReservationStatus(t *testing.T) {
	s, err := ParseReservationStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	_, err = ParseReservationStatus("seated")
	assert.Error(t, err)
	_, err = ParseReservationStatus("")
	assert.Error(t, err)
}

func TestIsExpectedTransition(t *testing.T) {
	assert.True(t, IsExpectedTransition(StatusPending, StatusConfirmed))
	assert.True(t, IsExpectedTransition(StatusConfirmed, StatusNoShow))
	assert.True(t, IsExpectedTransition(StatusCompleted, StatusCompleted))
	assert.False(t, IsExpectedTransition(StatusCompleted, StatusPending))
	assert.False(t, IsExpectedTransition(StatusPending, StatusCompleted))
	assert.False(t, IsExpectedTransition(StatusCancelled, StatusConfirmed))
}

func TestReservation_DateTimeIn(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r := Reservation{
		ID:              7,
		ReservationDate: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		ReservationTime: "18:00:00",
	}

	got, err := r.DateTimeIn(loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 12, 31, 18, 0, 0, 0, loc)))

	r.ReservationTime = "18:30"
	got, err = r.DateTimeIn(loc)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Minute())

	r.ReservationTime = "dinner"
	_, err = r.DateTimeIn(loc)
	assert.Error(t, err)

	r.ReservationTime = "18:00:00"
	r.ReservationDate = time.Time{}
	_, err = r.DateTimeIn(loc)
	assert.Error(t, err)
}

func TestNormalizeTimeOfDay(t *testing.T) {
	v, err := NormalizeTimeOfDay("7:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05:00", v)

	_, err = NormalizeTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = ParseDate("2026-02-30", time.UTC)
	assert.Error(t, err)
	_, err = ParseDate("28/02/2026", time.UTC)
	assert.Error(t, err)
}

func TestReservation_MarshalJSON(t *testing.T) {
	handler := uint(3)
	r := Reservation{
		ID:              1,
		CustomerName:    "Ada",
		ReservationDate: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		ReservationTime: "19:30:00",
		PartySize:       4,
		Status:          StatusConfirmed,
		HandlerID:       &handler,
	}

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "2026-11-02", out["reservation_date"])
	assert.Equal(t, "19:30:00", out["reservation_time"])
	assert.Equal(t, "confirmed", out["status"])
	assert.Equal(t, true, out["can_be_modified"])
	assert.EqualValues(t, 3, out["handler_id"])
}

func TestClampLeadHours(t *testing.T) {
	assert.Equal(t, 1, ClampLeadHours(0))
	assert.Equal(t, 1, ClampLeadHours(-5))
	assert.Equal(t, 24, ClampLeadHours(24))
	assert.Equal(t, 168, ClampLeadHours(168))
	assert.Equal(t, 168, ClampLeadHours(500))
}

func TestSMTPSettings_Complete(t *testing.T) {
	assert.True(t, SMTPSettings{Host: "smtp", Port: 25, From: "a@b.c"}.Complete())
	assert.False(t, SMTPSettings{Host: "smtp", From: "a@b.c"}.Complete())
	assert.False(t, SMTPSettings{Port: 25, From: "a@b.c"}.Complete())
	assert.False(t, SMTPSettings{Host: "smtp", Port: 25}.Complete())
}
