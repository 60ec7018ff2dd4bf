package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tablebook-backend/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ReservationFilter narrows List results. Zero values mean "any".
type ReservationFilter struct {
	Status   models.ReservationStatus
	Date     *time.Time
	Page     int
	PageSize int
}

type ReservationRepository interface {
	Create(ctx context.Context, r *models.Reservation) error
	FindByID(ctx context.Context, id uint) (*models.Reservation, error)
	Save(ctx context.Context, r *models.Reservation) error
	// Reschedule saves r and drops its reminder logs in one transaction, so
	// a moved reservation is reminded again for the new slot.
	Reschedule(ctx context.Context, r *models.Reservation) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, f ReservationFilter) ([]models.Reservation, int64, error)
	// FindBetweenDates returns reservations whose calendar date lies in
	// [from, to], ordered by date then time.
	FindBetweenDates(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	// FindByStatusBetweenDates is FindBetweenDates restricted to statuses.
	FindByStatusBetweenDates(ctx context.Context, statuses []models.ReservationStatus, from, to time.Time) ([]models.Reservation, error)
}

type ReminderLogRepository interface {
	// Create fails with ErrDuplicate when a log for the same reservation and
	// type already exists.
	Create(ctx context.Context, l *models.ReminderLog) error
	FindByReservationIDs(ctx context.Context, ids []uint, kind models.ReminderType) ([]models.ReminderLog, error)
	DeleteByReservation(ctx context.Context, reservationID uint) error
}

type SettingRepository interface {
	// GetByPrefix returns key -> value for all keys starting with prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]string, error)
	Upsert(ctx context.Context, values map[string]string) error
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
