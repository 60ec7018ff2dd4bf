package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	MinPartySize = 1
	MaxPartySize = 50

	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ReservationStatus{
	StatusPending,
	StatusConfirmed,
	StatusCancelled,
	StatusCompleted,
	StatusNoShow,
}

// ReminderEligibleStatuses are the statuses the reminder scheduler looks at.
var ReminderEligibleStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

func (s ReservationStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanBeModified reports whether staff may still edit the reservation details.
func (s ReservationStatus) CanBeModified() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParseReservationStatus(v string) (ReservationStatus, error) {
	s := ReservationStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid reservation status: %q", v)
	}
	return s, nil
}

var expectedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// IsExpectedTransition reports whether from -> to follows the normal booking
// flow. Status updates are not rejected on this basis; it only flags jumps
// such as completed -> pending.
func IsExpectedTransition(from, to ReservationStatus) bool {
	if from == to {
		return true
	}
	for _, next := range expectedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID              uint              `gorm:"primaryKey"`
	CustomerName    string            `gorm:"size:120;not null"`
	CustomerEmail   string            `gorm:"size:255;not null;index"`
	CustomerPhone   string            `gorm:"size:32;not null"`
	ReservationDate time.Time         `gorm:"type:date;not null;index:idx_reservations_date_time,priority:1"`
	ReservationTime string            `gorm:"type:varchar(8);not null;index:idx_reservations_date_time,priority:2"`
	PartySize       int               `gorm:"not null"`
	SpecialRequests string            `gorm:"type:text"`
	Notes           string            `gorm:"type:text"`
	Status          ReservationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	HandlerID       *uint             `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DateKey returns the calendar date as YYYY-MM-DD.
func (r *Reservation) DateKey() string {
	return r.ReservationDate.Format(DateLayout)
}

// DateTimeIn combines the calendar date and time-of-day in loc.
func (r *Reservation) DateTimeIn(loc *time.Location) (time.Time, error) {
	if r.ReservationDate.IsZero() {
		return time.Time{}, fmt.Errorf("reservation %d has no date", r.ID)
	}
	tod, err := ParseTimeOfDay(r.ReservationTime)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := r.ReservationDate.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(v string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(v), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return t, nil
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", v)
}

// NormalizeTimeOfDay returns v in HH:MM:SS form.
func NormalizeTimeOfDay(v string) (string, error) {
	t, err := ParseTimeOfDay(v)
	if err != nil {
		return "", err
	}
	return t.Format(TimeLayout), nil
}

type reservationJSON struct {
	ID              uint              `json:"id"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerPhone   string            `json:"customer_phone"`
	ReservationDate string            `json:"reservation_date"`
	ReservationTime string            `json:"reservation_time"`
	PartySize       int               `json:"party_size"`
	SpecialRequests string            `json:"special_requests,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          ReservationStatus `json:"status"`
	CanBeModified   bool              `json:"can_be_modified"`
	HandlerID       *uint             `json:"handler_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (r Reservation) MarshalJSON() ([]byte, error) {
	return json.Marshal(reservationJSON{
		ID:              r.ID,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		ReservationDate: r.DateKey(),
		ReservationTime: r.ReservationTime,
		PartySize:       r.PartySize,
		SpecialRequests: r.SpecialRequests,
		Notes:           r.Notes,
		Status:          r.Status,
		CanBeModified:   r.Status.CanBeModified(),
		HandlerID:       r.HandlerID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	})
}
