package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tablebook-backend/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Reservation{}, &models.ReminderLog{}, &models.Setting{}))
	require.NoError(t, db.Exec("TRUNCATE reminder_logs, reservations, settings RESTART IDENTITY CASCADE").Error)
	return db
}

func newReservation(date time.Time, tod string, status models.ReservationStatus) *models.Reservation {
	return &models.Reservation{
		CustomerName:    "Integration Guest",
		CustomerEmail:   "guest@example.com",
		CustomerPhone:   "+390612345678",
		ReservationDate: date,
		ReservationTime: tod,
		PartySize:       2,
		Status:          status,
	}
}

func TestReminderLog_UniquePerReservationAndType(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	resRepo := NewReservationRepository(db)
	logRepo := NewReminderLogRepository(db)

	res := newReservation(time.Now().AddDate(0, 0, 2), "19:00:00", models.StatusPending)
	require.NoError(t, resRepo.Create(ctx, res))

	first := &models.ReminderLog{ReservationID: res.ID, ReminderType: models.ReminderTypeMeal, LeadHours: 24, SentAt: time.Now()}
	require.NoError(t, logRepo.Create(ctx, first))

	second := &models.ReminderLog{ReservationID: res.ID, ReminderType: models.ReminderTypeMeal, LeadHours: 24, SentAt: time.Now()}
	err := logRepo.Create(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)

	logs, err := logRepo.FindByReservationIDs(ctx, []uint{res.ID}, models.ReminderTypeMeal)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestReservationDelete_CascadesReminderLogs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	resRepo := NewReservationRepository(db)
	logRepo := NewReminderLogRepository(db)

	res := newReservation(time.Now().AddDate(0, 0, 1), "12:30:00", models.StatusConfirmed)
	require.NoError(t, resRepo.Create(ctx, res))
	require.NoError(t, logRepo.Create(ctx, &models.ReminderLog{
		ReservationID: res.ID, ReminderType: models.ReminderTypeMeal, LeadHours: 2, SentAt: time.Now(),
	}))

	require.NoError(t, resRepo.Delete(ctx, res.ID))

	var count int64
	require.NoError(t, db.Model(&models.ReminderLog{}).Where("reservation_id = ?", res.ID).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, resRepo.Delete(ctx, res.ID), ErrNotFound)
	_, err := resRepo.FindByID(ctx, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationReschedule_ClearsReminderLogs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	resRepo := NewReservationRepository(db)
	logRepo := NewReminderLogRepository(db)

	res := newReservation(time.Now().AddDate(0, 0, 3), "19:00:00", models.StatusConfirmed)
	require.NoError(t, resRepo.Create(ctx, res))
	require.NoError(t, logRepo.Create(ctx, &models.ReminderLog{
		ReservationID: res.ID, ReminderType: models.ReminderTypeMeal, LeadHours: 24, SentAt: time.Now(),
	}))

	res.ReservationTime = "21:00:00"
	require.NoError(t, resRepo.Reschedule(ctx, res))

	stored, err := resRepo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "21:00:00", stored.ReservationTime)
	logs, err := logRepo.FindByReservationIDs(ctx, []uint{res.ID}, models.ReminderTypeMeal)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestFindByStatusBetweenDates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewReservationRepository(db)

	base := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newReservation(base, "20:00:00", models.StatusPending)))
	require.NoError(t, repo.Create(ctx, newReservation(base, "18:00:00", models.StatusConfirmed)))
	require.NoError(t, repo.Create(ctx, newReservation(base, "19:00:00", models.StatusCancelled)))
	require.NoError(t, repo.Create(ctx, newReservation(base.AddDate(0, 1, 0), "19:00:00", models.StatusPending)))

	got, err := repo.FindByStatusBetweenDates(ctx, models.ReminderEligibleStatuses, base, base.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "18:00:00", got[0].ReservationTime)
	assert.Equal(t, "20:00:00", got[1].ReservationTime)
}

func TestSettingUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewSettingRepository(db)

	require.NoError(t, repo.Upsert(ctx, map[string]string{"booking.smtp.host": "a", "other.key": "x"}))
	require.NoError(t, repo.Upsert(ctx, map[string]string{"booking.smtp.host": "b"}))

	got, err := repo.GetByPrefix(ctx, "booking.")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"booking.smtp.host": "b"}, got)
}
