package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tablebook-backend/metrics"
	"tablebook-backend/models"
	"tablebook-backend/repositories"
	"tablebook-backend/utils"
)

// ReservationInput is a public booking request. Status is accepted so that
// clients sending it do not fail, but it is always ignored.
type ReservationInput struct {
	CustomerName    string `json:"customer_name" binding:"required,max=120"`
	CustomerEmail   string `json:"customer_email" binding:"required,email,max=255"`
	CustomerPhone   string `json:"customer_phone" binding:"required,max=32"`
	ReservationDate string `json:"reservation_date" binding:"required"`
	ReservationTime string `json:"reservation_time" binding:"required"`
	PartySize       int    `json:"party_size"`
	SpecialRequests string `json:"special_requests" binding:"max=2000"`
	Status          string `json:"status"`
}

// ReservationUpdate is a staff edit; nil fields are left unchanged.
type ReservationUpdate struct {
	CustomerName    *string `json:"customer_name" binding:"omitempty,min=1,max=120"`
	CustomerEmail   *string `json:"customer_email" binding:"omitempty,email,max=255"`
	CustomerPhone   *string `json:"customer_phone" binding:"omitempty,max=32"`
	ReservationDate *string `json:"reservation_date"`
	ReservationTime *string `json:"reservation_time"`
	PartySize       *int    `json:"party_size"`
	SpecialRequests *string `json:"special_requests" binding:"omitempty,max=2000"`
	Notes           *string `json:"notes" binding:"omitempty,max=4000"`
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type ReservationService struct {
	reservations repositories.ReservationRepository
	reminderLogs repositories.ReminderLogRepository
	config       ConfigProvider
	mailer       Mailer
	siteName     string
	loc          *time.Location
	now          func() time.Time
	log          zerolog.Logger
}

func NewReservationService(
	reservations repositories.ReservationRepository,
	reminderLogs repositories.ReminderLogRepository,
	config ConfigProvider,
	mailer Mailer,
	siteName string,
	loc *time.Location,
	log zerolog.Logger,
) *ReservationService {
	if loc == nil {
		loc = time.Local
	}
	return &ReservationService{
		reservations: reservations,
		reminderLogs: reminderLogs,
		config:       config,
		mailer:       mailer,
		siteName:     siteName,
		loc:          loc,
		now:          time.Now,
		log:          log.With().Str("component", "reservation_service").Logger(),
	}
}

// Create stores a pending reservation and emails the customer. If that email
// cannot be sent the reservation is removed again and a ValidationError is
// returned: an unconfirmed booking does not exist. Admin notification is
// best effort.
func (s *ReservationService) Create(ctx context.Context, in ReservationInput) (*models.Reservation, error) {
	if err := validateStruct(in); err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, err
	}
	name, err := requireName(in.CustomerName)
	if err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, err
	}
	if err := validatePartySize(in.PartySize); err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, err
	}
	if err := validatePhone(in.CustomerPhone); err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, err
	}
	date, err := s.parseFutureDate(in.ReservationDate)
	if err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, err
	}
	tod, err := models.NormalizeTimeOfDay(in.ReservationTime)
	if err != nil {
		metrics.IncReservationCreated("invalid")
		return nil, invalid("reservation_time", "%v", err)
	}
	if in.Status != "" && !strings.EqualFold(in.Status, string(models.StatusPending)) {
		s.log.Info().Str("requested_status", in.Status).Msg("ignoring caller-supplied status on create")
	}

	r := &models.Reservation{
		CustomerName:    name,
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		ReservationDate: date,
		ReservationTime: tod,
		PartySize:       in.PartySize,
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
		Status:          models.StatusPending,
	}
	if err := s.reservations.Create(ctx, r); err != nil {
		return nil, err
	}

	cfg, err := s.config.GetRuntimeConfig(ctx)
	if err != nil {
		s.log.Error().Err(err).Uint("reservation_id", r.ID).Msg("failed to load notification config")
		s.rollback(ctx, r.ID)
		metrics.IncReservationCreated("rolled_back")
		return nil, &ValidationError{Field: "customer_email", Message: "confirmation email could not be sent"}
	}

	vars := ReservationVariables(r, s.siteName, 0)
	res := s.sendTemplate(ctx, cfg, models.TemplateCustomerCreated, r.CustomerEmail, vars)
	if !res.Sent {
		s.log.Warn().
			Uint("reservation_id", r.ID).
			Str("reason", res.Reason).
			Str("detail", res.Message).
			Msg("customer confirmation failed, rolling back reservation")
		s.rollback(ctx, r.ID)
		metrics.IncReservationCreated("rolled_back")
		return nil, &ValidationError{Field: "customer_email", Message: "confirmation email could not be sent"}
	}

	if cfg.AdminNotifyEnabled {
		for _, to := range cfg.AdminRecipients {
			if ar := s.sendTemplate(ctx, cfg, models.TemplateAdminCreated, to, vars); !ar.Sent {
				s.log.Warn().
					Uint("reservation_id", r.ID).
					Str("recipient", to).
					Str("reason", ar.Reason).
					Str("detail", ar.Message).
					Msg("admin notification failed")
			}
		}
	}

	metrics.IncReservationCreated("created")
	s.log.Info().Uint("reservation_id", r.ID).Str("date", r.DateKey()).Str("time", r.ReservationTime).Msg("reservation created")
	return r, nil
}

func (s *ReservationService) rollback(ctx context.Context, id uint) {
	if err := s.reservations.Delete(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.log.Error().Err(err).Uint("reservation_id", id).Msg("failed to roll back reservation")
	}
}

func (s *ReservationService) sendTemplate(ctx context.Context, cfg models.BookingNotificationConfig, kind models.TemplateKind, to string, vars map[string]string) SendResult {
	out := RenderTemplate(ResolveTemplate(kind, cfg.Template(kind)), vars)
	return s.mailer.Send(ctx, OutgoingEmail{To: to, Subject: out.Subject, Text: out.Text, HTML: out.HTML})
}

func (s *ReservationService) Get(ctx context.Context, id uint) (*models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return r, nil
}

func (s *ReservationService) List(ctx context.Context, f repositories.ReservationFilter) ([]models.Reservation, int64, error) {
	return s.reservations.List(ctx, f)
}

// Update edits reservation details. A changed date or time clears the
// reminder log so the reminder is sent again for the new slot.
func (s *ReservationService) Update(ctx context.Context, id uint, in ReservationUpdate) (*models.Reservation, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}

	slotChanged := false
	if in.ReservationDate != nil {
		date, err := s.parseFutureDate(*in.ReservationDate)
		if err != nil {
			return nil, err
		}
		if date.Format(models.DateLayout) != r.DateKey() {
			slotChanged = true
		}
		r.ReservationDate = date
	}
	if in.ReservationTime != nil {
		tod, err := models.NormalizeTimeOfDay(*in.ReservationTime)
		if err != nil {
			return nil, invalid("reservation_time", "%v", err)
		}
		if tod != r.ReservationTime {
			slotChanged = true
		}
		r.ReservationTime = tod
	}
	if in.PartySize != nil {
		if err := validatePartySize(*in.PartySize); err != nil {
			return nil, err
		}
		r.PartySize = *in.PartySize
	}
	if in.CustomerName != nil {
		name, err := requireName(*in.CustomerName)
		if err != nil {
			return nil, err
		}
		r.CustomerName = name
	}
	if in.CustomerEmail != nil {
		r.CustomerEmail = strings.TrimSpace(*in.CustomerEmail)
	}
	if in.CustomerPhone != nil {
		if err := validatePhone(*in.CustomerPhone); err != nil {
			return nil, err
		}
		r.CustomerPhone = strings.TrimSpace(*in.CustomerPhone)
	}
	if in.SpecialRequests != nil {
		r.SpecialRequests = strings.TrimSpace(*in.SpecialRequests)
	}
	if in.Notes != nil {
		r.Notes = strings.TrimSpace(*in.Notes)
	}

	if !slotChanged {
		if err := s.reservations.Save(ctx, r); err != nil {
			return nil, s.notFound(err, id)
		}
		return r, nil
	}
	if err := s.reservations.Reschedule(ctx, r); err != nil {
		return nil, s.notFound(err, id)
	}
	s.log.Info().Uint("reservation_id", r.ID).Msg("reservation slot changed, reminder reset")
	return r, nil
}

// UpdateStatus sets any of the five statuses. handlerID is recorded only on
// a transition to confirmed and is never cleared afterwards.
func (s *ReservationService) UpdateStatus(ctx context.Context, id uint, status string, handlerID *uint) (*models.Reservation, error) {
	next, err := models.ParseReservationStatus(status)
	if err != nil {
		return nil, invalid("status", "must be one of pending, confirmed, cancelled, completed, no_show")
	}
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}

	prev := r.Status
	if !models.IsExpectedTransition(prev, next) {
		s.log.Warn().
			Uint("reservation_id", id).
			Str("from", string(prev)).
			Str("to", string(next)).
			Msg("unusual status transition")
	}
	r.Status = next
	if next == models.StatusConfirmed && handlerID != nil {
		h := *handlerID
		r.HandlerID = &h
	}
	if err := s.reservations.Save(ctx, r); err != nil {
		return nil, s.notFound(err, id)
	}
	s.log.Info().Uint("reservation_id", id).Str("from", string(prev)).Str("to", string(next)).Msg("reservation status updated")
	return r, nil
}

// Delete removes the reservation and its reminder logs.
func (s *ReservationService) Delete(ctx context.Context, id uint) error {
	if _, err := s.reservations.FindByID(ctx, id); err != nil {
		return s.notFound(err, id)
	}
	if err := s.reminderLogs.DeleteByReservation(ctx, id); err != nil {
		return err
	}
	if err := s.reservations.Delete(ctx, id); err != nil {
		return s.notFound(err, id)
	}
	s.log.Info().Uint("reservation_id", id).Msg("reservation deleted")
	return nil
}

// GetCalendar groups a month's reservations by YYYY-MM-DD.
func (s *ReservationService) GetCalendar(ctx context.Context, month string) (map[string][]models.Reservation, error) {
	month = strings.TrimSpace(month)
	if !monthPattern.MatchString(month) {
		return nil, invalid("month", "expected YYYY-MM")
	}
	from, err := time.ParseInLocation("2006-01", month, time.UTC)
	if err != nil {
		return nil, invalid("month", "expected YYYY-MM")
	}
	to := from.AddDate(0, 1, -1)

	rows, err := s.reservations.FindBetweenDates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Reservation)
	for _, r := range rows {
		key := r.DateKey()
		out[key] = append(out[key], r)
	}
	return out, nil
}

// parseFutureDate parses a calendar date and rejects days before today in
// the restaurant's time zone. Dates are stored as UTC midnight.
func (s *ReservationService) parseFutureDate(v string) (time.Time, error) {
	date, err := models.ParseDate(v, time.UTC)
	if err != nil {
		return time.Time{}, invalid("reservation_date", "%v", err)
	}
	today := utils.BeginningOfDay(s.now().In(s.loc)).Format(models.DateLayout)
	if date.Format(models.DateLayout) < today {
		return time.Time{}, invalid("reservation_date", "must not be in the past")
	}
	return date, nil
}

func (s *ReservationService) notFound(err error, id uint) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &NotFoundError{Resource: "reservation", ID: id}
	}
	return err
}

func validatePartySize(n int) error {
	if n < models.MinPartySize || n > models.MaxPartySize {
		return invalid("party_size", "must be between %d and %d", models.MinPartySize, models.MaxPartySize)
	}
	return nil
}

func requireName(v string) (string, error) {
	name := strings.TrimSpace(v)
	if name == "" {
		return "", invalid("customer_name", "is required")
	}
	return name, nil
}

func validatePhone(phone string) error {
	if !utils.ValidatePhone(phone) {
		return invalid("customer_phone", "invalid phone number format")
	}
	return nil
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fe.Field(), "failed %q validation", fe.Tag())
		}
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// DashboardOverview is the staff landing page summary.
type DashboardOverview struct {
	Date              string               `json:"date"`
	TodayReservations int                  `json:"today_reservations"`
	TodayCovers       int                  `json:"today_covers"`
	PendingCount      int                  `json:"pending_count"`
	Upcoming          []models.Reservation `json:"upcoming"`
}

const overviewDays = 7

// Overview summarises today and lists active reservations for the coming
// week. Cancelled and no-show bookings do not count as covers.
func (s *ReservationService) Overview(ctx context.Context) (DashboardOverview, error) {
	today := utils.BeginningOfDay(s.now().In(s.loc))
	from, err := models.ParseDate(today.Format(models.DateLayout), time.UTC)
	if err != nil {
		return DashboardOverview{}, err
	}
	rows, err := s.reservations.FindBetweenDates(ctx, from, from.AddDate(0, 0, overviewDays))
	if err != nil {
		return DashboardOverview{}, err
	}

	out := DashboardOverview{Date: from.Format(models.DateLayout), Upcoming: []models.Reservation{}}
	for _, r := range rows {
		if !r.Status.CanBeModified() {
			continue
		}
		if r.Status == models.StatusPending {
			out.PendingCount++
		}
		if r.DateKey() == out.Date {
			out.TodayReservations++
			out.TodayCovers += r.PartySize
		}
		out.Upcoming = append(out.Upcoming, r)
	}
	return out, nil
}
