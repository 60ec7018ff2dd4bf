package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tablebook-backend/models"
)

type GormReminderLogRepository struct {
	db *gorm.DB
}

func NewReminderLogRepository(db *gorm.DB) *GormReminderLogRepository {
	return &GormReminderLogRepository{db: db}
}

func (r *GormReminderLogRepository) Create(ctx context.Context, l *models.ReminderLog) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to log reminder for reservation %d: %w", l.ReservationID, translate(err))
	}
	return nil
}

func (r *GormReminderLogRepository) FindByReservationIDs(ctx context.Context, ids []uint, kind models.ReminderType) ([]models.ReminderLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.ReminderLog
	err := r.db.WithContext(ctx).
		Where("reservation_id IN ? AND reminder_type = ?", ids, kind).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder logs: %w", err)
	}
	return out, nil
}

func (r *GormReminderLogRepository) DeleteByReservation(ctx context.Context, reservationID uint) error {
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Delete(&models.ReminderLog{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear reminder logs for reservation %d: %w", reservationID, err)
	}
	return nil
}
