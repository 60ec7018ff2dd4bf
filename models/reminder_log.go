// models/reminder_log.go
package models

import (
	"time"
)

type ReminderType string

const (
	ReminderTypeMeal ReminderType = "meal_reminder"
)

// ReminderLog records a reminder that was actually delivered. The
// (reservation_id, reminder_type) pair is unique, so a reminder kind can be
// sent at most once per reservation.
type ReminderLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ReservationID uint         `gorm:"not null;uniqueIndex:idx_reminder_logs_reservation_type,priority:1" json:"reservation_id"`
	Reservation   *Reservation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ReminderType  ReminderType `gorm:"type:varchar(32);not null;uniqueIndex:idx_reminder_logs_reservation_type,priority:2" json:"reminder_type"`
	LeadHours     int          `gorm:"not null" json:"lead_hours"`
	SentAt        time.Time    `gorm:"not null" json:"sent_at"`
	CreatedAt     time.Time    `json:"created_at"`
}
