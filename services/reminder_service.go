package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"

	"tablebook-backend/metrics"
	"tablebook-backend/models"
	"tablebook-backend/repositories"
)

const (
	candidateLookBack  = 24 * time.Hour
	candidateLookAhead = 31 // days
)

// TickReport summarises one scheduler pass.
type TickReport struct {
	Candidates      int    `json:"candidates"`
	AlreadyReminded int    `json:"already_reminded"`
	NotDue          int    `json:"not_due"`
	Sent            int    `json:"sent"`
	Failed          int    `json:"failed"`
	Skipped         string `json:"skipped,omitempty"`
}

type ReminderSchedulerOptions struct {
	Interval    time.Duration
	SendTimeout time.Duration
	SiteName    string
	Location    *time.Location
}

// ReminderScheduler periodically emails customers ahead of their meal. The
// reminder log is the sole dedup record: a reminder whose email failed has
// no log row and is retried on the next tick.
type ReminderScheduler struct {
	reservations repositories.ReservationRepository
	reminderLogs repositories.ReminderLogRepository
	config       ConfigProvider
	mailer       Mailer
	text         TextSender
	guard        TickGuard

	interval    time.Duration
	sendTimeout time.Duration
	siteName    string
	loc         *time.Location
	retry       retry.Strategy
	now         func() time.Time
	log         zerolog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	ticks *sync.WaitGroup
}

func NewReminderScheduler(
	reservations repositories.ReservationRepository,
	reminderLogs repositories.ReminderLogRepository,
	config ConfigProvider,
	mailer Mailer,
	guard TickGuard,
	opts ReminderSchedulerOptions,
	log zerolog.Logger,
) *ReminderScheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if guard == nil {
		guard = &LocalTickGuard{}
	}
	return &ReminderScheduler{
		reservations: reservations,
		reminderLogs: reminderLogs,
		config:       config,
		mailer:       mailer,
		guard:        guard,
		interval:     opts.Interval,
		sendTimeout:  opts.SendTimeout,
		siteName:     opts.SiteName,
		loc:          opts.Location,
		retry: retry.Strategy{
			Attempts: 3,
			Delay:    100 * time.Millisecond,
			Backoff:  2,
		},
		now: time.Now,
		log: log.With().Str("component", "reminder_scheduler").Logger(),
	}
}

// WithTextSender mirrors each sent reminder as an SMS or WhatsApp message.
func (s *ReminderScheduler) WithTextSender(t TextSender) *ReminderScheduler {
	s.text = t
	return s
}

// Start schedules ticks every interval and runs one immediately. Calling it
// on a running scheduler does nothing.
func (s *ReminderScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	ctx := context.Background()
	ticks := &sync.WaitGroup{}
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		ticks.Add(1)
		defer ticks.Done()
		s.RunTick(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule reminder tick: %w", err)
	}
	c.Start()
	s.cron = c
	s.ticks = ticks

	ticks.Add(1)
	go func() {
		defer ticks.Done()
		s.RunTick(ctx)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("reminder scheduler started")
	return nil
}

// Stop halts future ticks. The returned channel closes once any in-flight
// tick has finished; ticks are not interrupted.
func (s *ReminderScheduler) Stop() <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	c, ticks := s.cron, s.ticks
	s.cron, s.ticks = nil, nil
	s.mu.Unlock()

	if c == nil {
		close(done)
		return done
	}
	go func() {
		<-c.Stop().Done()
		ticks.Wait()
		s.log.Info().Msg("reminder scheduler stopped")
		close(done)
	}()
	return done
}

func (s *ReminderScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RunTick performs one pass. It never panics and never returns an error:
// failures are logged with the step that failed and the next tick starts
// from scratch.
func (s *ReminderScheduler) RunTick(ctx context.Context) (report TickReport) {
	release, ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("step", "acquire_lock").Msg("reminder tick failed")
		metrics.IncSchedulerTick("failed")
		report.Skipped = "lock_error"
		return report
	}
	if !ok {
		s.log.Debug().Msg("previous reminder tick still running, skipping")
		metrics.IncSchedulerTick("skipped_overlap")
		report.Skipped = "overlap"
		return report
	}
	defer release()

	started := time.Now()
	step := "load_config"
	defer func() {
		metrics.ObserveTickDuration(time.Since(started))
		if rec := recover(); rec != nil {
			s.log.Error().
				Str("step", "panic").
				Str("failed_step", step).
				Interface("panic", rec).
				Msg("reminder tick panicked")
			metrics.IncSchedulerTick("failed")
			report.Skipped = "panic"
		}
	}()

	report, err = s.tick(ctx, &step)
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("step", step).Msg("reminder tick failed")
		metrics.IncSchedulerTick("failed")
	case report.Skipped != "":
		metrics.IncSchedulerTick("skipped_disabled")
	default:
		metrics.IncSchedulerTick("ok")
		if report.Sent > 0 || report.Failed > 0 {
			s.log.Info().
				Int("candidates", report.Candidates).
				Int("sent", report.Sent).
				Int("failed", report.Failed).
				Msg("reminder tick finished")
		}
	}
	return report
}

func (s *ReminderScheduler) tick(ctx context.Context, step *string) (TickReport, error) {
	var report TickReport

	*step = "load_config"
	cfg, err := s.config.GetRuntimeConfig(ctx)
	if err != nil {
		return report, err
	}
	if !cfg.ReminderEnabled {
		report.Skipped = "disabled"
		return report, nil
	}
	lead := models.ClampLeadHours(cfg.ReminderLeadHours)

	*step = "load_candidates"
	now := s.now().In(s.loc)
	from := now.Add(-candidateLookBack)
	to := now.AddDate(0, 0, candidateLookAhead)
	var candidates []models.Reservation
	err = retry.DoContext(ctx, s.retry, func() error {
		var findErr error
		candidates, findErr = s.reservations.FindByStatusBetweenDates(ctx, models.ReminderEligibleStatuses, from, to)
		return findErr
	})
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	*step = "load_reminder_logs"
	ids := make([]uint, 0, len(candidates))
	for _, r := range candidates {
		ids = append(ids, r.ID)
	}
	logs, err := s.reminderLogs.FindByReservationIDs(ctx, ids, models.ReminderTypeMeal)
	if err != nil {
		return report, err
	}
	reminded := make(map[uint]struct{}, len(logs))
	for _, l := range logs {
		reminded[l.ReservationID] = struct{}{}
	}

	for i := range candidates {
		r := &candidates[i]
		if _, done := reminded[r.ID]; done {
			report.AlreadyReminded++
			continue
		}
		mealAt, err := r.DateTimeIn(s.loc)
		if err != nil {
			s.log.Warn().Err(err).Uint("reservation_id", r.ID).Msg("skipping reservation with unreadable slot")
			continue
		}
		if !ReminderDue(mealAt, now, lead) {
			report.NotDue++
			continue
		}

		*step = "send"
		if s.remind(ctx, cfg, r, lead, now, step) {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

// ReminderDue reports whether now falls inside [mealAt-lead, mealAt).
func ReminderDue(mealAt, now time.Time, leadHours int) bool {
	if !now.Before(mealAt) {
		return false
	}
	return !now.Before(mealAt.Add(-time.Duration(leadHours) * time.Hour))
}

func (s *ReminderScheduler) remind(ctx context.Context, cfg models.BookingNotificationConfig, r *models.Reservation, lead int, now time.Time, step *string) bool {
	logger := s.log.With().Uint("reservation_id", r.ID).Logger()

	vars := ReservationVariables(r, s.siteName, lead)
	out := RenderTemplate(ResolveTemplate(models.TemplateCustomerReminder, cfg.Template(models.TemplateCustomerReminder)), vars)

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	res := s.mailer.Send(sendCtx, OutgoingEmail{To: r.CustomerEmail, Subject: out.Subject, Text: out.Text, HTML: out.HTML})
	cancel()
	if !res.Sent {
		logger.Warn().
			Str("step", "send").
			Str("reason", res.Reason).
			Str("detail", res.Message).
			Msg("reminder email not sent, will retry next tick")
		metrics.IncReminder(string(models.ReminderTypeMeal), "failed")
		return false
	}

	*step = "write_log"
	entry := &models.ReminderLog{
		ReservationID: r.ID,
		ReminderType:  models.ReminderTypeMeal,
		LeadHours:     lead,
		SentAt:        now,
	}
	duplicate := false
	err := retry.DoContext(ctx, s.retry, func() error {
		createErr := s.reminderLogs.Create(ctx, entry)
		if errors.Is(createErr, repositories.ErrDuplicate) {
			duplicate = true
			return nil
		}
		return createErr
	})
	switch {
	case err != nil:
		logger.Error().Err(err).Str("step", "write_log").Msg("reminder sent but log write failed")
		metrics.IncReminder(string(models.ReminderTypeMeal), "log_failed")
	case duplicate:
		logger.Warn().Str("step", "write_log").Msg("reminder already logged by another tick")
	}
	metrics.IncReminder(string(models.ReminderTypeMeal), "sent")
	logger.Info().Str("message_id", res.MessageID).Int("lead_hours", lead).Msg("meal reminder sent")

	if s.text != nil && r.CustomerPhone != "" {
		textCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
		if err := s.text.SendText(textCtx, r.CustomerPhone, out.Subject); err != nil {
			logger.Warn().Err(err).Str("step", "send_text").Msg("reminder text message failed")
		}
	}
	return true
}
