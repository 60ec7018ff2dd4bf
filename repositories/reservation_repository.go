package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tablebook-backend/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type GormReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		return fmt.Errorf("failed to create reservation: %w", translate(err))
	}
	return nil
}

func (r *GormReservationRepository) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.db.WithContext(ctx).First(&res, id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *GormReservationRepository) Save(ctx context.Context, res *models.Reservation) error {
	if err := r.db.WithContext(ctx).Save(res).Error; err != nil {
		return fmt.Errorf("failed to update reservation %d: %w", res.ID, translate(err))
	}
	return nil
}

func (r *GormReservationRepository) Reschedule(ctx context.Context, res *models.Reservation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(res).Error; err != nil {
			return translate(err)
		}
		return tx.Where("reservation_id = ?", res.ID).Delete(&models.ReminderLog{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to reschedule reservation %d: %w", res.ID, err)
	}
	return nil
}

func (r *GormReservationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Reservation{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormReservationRepository) List(ctx context.Context, f ReservationFilter) ([]models.Reservation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Reservation{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Date != nil {
		q = q.Where("reservation_date = ?", f.Date.Format(models.DateLayout))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	var out []models.Reservation
	err := q.Order("reservation_date ASC, reservation_time ASC, id ASC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, total, nil
}

func (r *GormReservationRepository) FindBetweenDates(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.db.WithContext(ctx).
		Where("reservation_date BETWEEN ? AND ?", from.Format(models.DateLayout), to.Format(models.DateLayout)).
		Order("reservation_date ASC, reservation_time ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations by date: %w", err)
	}
	return out, nil
}

func (r *GormReservationRepository) FindByStatusBetweenDates(ctx context.Context, statuses []models.ReservationStatus, from, to time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("reservation_date BETWEEN ? AND ?", from.Format(models.DateLayout), to.Format(models.DateLayout)).
		Order("reservation_date ASC, reservation_time ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations by status and date: %w", err)
	}
	return out, nil
}
