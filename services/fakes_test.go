package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"tablebook-backend/models"
	"tablebook-backend/repositories"
)

type fakeSettingRepo struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeSettingRepo(values map[string]string) *fakeSettingRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &fakeSettingRepo{values: values}
}

func (f *fakeSettingRepo) GetByPrefix(_ context.Context, prefix string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for k, v := range f.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeSettingRepo) Upsert(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.values[k] = v
	}
	return nil
}

// fakeReservationRepo is an in-memory reservation store.
type fakeReservationRepo struct {
	mu        sync.Mutex
	nextID    uint
	rows      map[uint]models.Reservation
	createErr error
	deleteErr error
	findErr   error
	// rescheduleErr fails Reschedule before anything is written.
	rescheduleErr error
	logs          *fakeReminderLogRepo // cascade target
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{rows: map[uint]models.Reservation{}}
}

func (f *fakeReservationRepo) Create(_ context.Context, r *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeReservationRepo) FindByID(_ context.Context, id uint) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &r, nil
}

func (f *fakeReservationRepo) Save(_ context.Context, r *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[r.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.UpdatedAt = time.Now()
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeReservationRepo) Reschedule(ctx context.Context, r *models.Reservation) error {
	f.mu.Lock()
	if f.rescheduleErr != nil {
		f.mu.Unlock()
		return f.rescheduleErr
	}
	f.mu.Unlock()
	if err := f.Save(ctx, r); err != nil {
		return err
	}
	if f.logs != nil {
		return f.logs.DeleteByReservation(ctx, r.ID)
	}
	return nil
}

func (f *fakeReservationRepo) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.rows, id)
	if f.logs != nil {
		_ = f.logs.DeleteByReservation(context.Background(), id)
	}
	return nil
}

func (f *fakeReservationRepo) List(_ context.Context, flt repositories.ReservationFilter) ([]models.Reservation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.rows {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.Date != nil && r.DateKey() != flt.Date.Format(models.DateLayout) {
			continue
		}
		out = append(out, r)
	}
	sortReservations(out)
	return out, int64(len(out)), nil
}

func (f *fakeReservationRepo) FindBetweenDates(_ context.Context, from, to time.Time) ([]models.Reservation, error) {
	return f.between(nil, from, to)
}

func (f *fakeReservationRepo) FindByStatusBetweenDates(_ context.Context, statuses []models.ReservationStatus, from, to time.Time) ([]models.Reservation, error) {
	return f.between(statuses, from, to)
}

func (f *fakeReservationRepo) between(statuses []models.ReservationStatus, from, to time.Time) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	lo, hi := from.Format(models.DateLayout), to.Format(models.DateLayout)
	var out []models.Reservation
	for _, r := range f.rows {
		key := r.DateKey()
		if key < lo || key > hi {
			continue
		}
		if statuses != nil && !containsStatus(statuses, r.Status) {
			continue
		}
		out = append(out, r)
	}
	sortReservations(out)
	return out, nil
}

func containsStatus(list []models.ReservationStatus, s models.ReservationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortReservations(rs []models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].DateKey() != rs[j].DateKey() {
			return rs[i].DateKey() < rs[j].DateKey()
		}
		if rs[i].ReservationTime != rs[j].ReservationTime {
			return rs[i].ReservationTime < rs[j].ReservationTime
		}
		return rs[i].ID < rs[j].ID
	})
}

// fakeReminderLogRepo enforces the (reservation, type) uniqueness.
type fakeReminderLogRepo struct {
	mu        sync.Mutex
	rows      []models.ReminderLog
	createErr error
	findErr   error
	// createFailures fails that many Create calls with errBoom first.
	createFailures int
}

func (f *fakeReminderLogRepo) Create(_ context.Context, l *models.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.createFailures > 0 {
		f.createFailures--
		return errBoom
	}
	for _, row := range f.rows {
		if row.ReservationID == l.ReservationID && row.ReminderType == l.ReminderType {
			return repositories.ErrDuplicate
		}
	}
	l.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *l)
	return nil
}

func (f *fakeReminderLogRepo) FindByReservationIDs(_ context.Context, ids []uint, kind models.ReminderType) ([]models.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ReminderLog
	for _, row := range f.rows {
		if want[row.ReservationID] && row.ReminderType == kind {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeReminderLogRepo) DeleteByReservation(_ context.Context, reservationID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.ReservationID != reservationID {
			kept = append(kept, row)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeReminderLogRepo) count(reservationID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.ReservationID == reservationID {
			n++
		}
	}
	return n
}

// fakeMailer records emails and fails for addresses listed in failFor.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []OutgoingEmail
	failFor map[string]bool
	failAll bool
}

func (f *fakeMailer) Send(_ context.Context, msg OutgoingEmail) SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failFor[msg.To] {
		return SendResult{Reason: ReasonSendFailed, Message: "smtp: 550 mailbox unavailable"}
	}
	f.sent = append(f.sent, msg)
	return SendResult{Sent: true, MessageID: "<fake@local>"}
}

func (f *fakeMailer) sentTo(addr string) []OutgoingEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OutgoingEmail
	for _, m := range f.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMailer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type staticConfig struct {
	cfg models.BookingNotificationConfig
	err error
}

func (s *staticConfig) GetRuntimeConfig(context.Context) (models.BookingNotificationConfig, error) {
	return s.cfg, s.err
}

// fakeTransport stands in for a go-mail client.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []*mail.Msg
	sendErr error
	dialErr error
	closed  bool
	dialled int
}

func (f *fakeTransport) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeTransport) DialWithContext(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialled++
	return f.dialErr
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var errBoom = errors.New("boom")
