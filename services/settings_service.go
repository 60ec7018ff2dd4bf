package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tablebook-backend/models"
	"tablebook-backend/repositories"
)

const settingsPrefix = "booking."

// Setting keys for the booking notification configuration.
const (
	KeySMTPHost           = "booking.smtp.host"
	KeySMTPPort           = "booking.smtp.port"
	KeySMTPSecure         = "booking.smtp.secure"
	KeySMTPUsername       = "booking.smtp.username"
	KeySMTPPassword       = "booking.smtp.password"
	KeySMTPFrom           = "booking.smtp.from"
	KeySMTPFromName       = "booking.smtp.from_name"
	KeyAdminNotifyEnabled = "booking.admin.notify_enabled"
	KeyAdminRecipients    = "booking.admin.recipients"
	KeyReminderEnabled    = "booking.reminder.enabled"
	KeyReminderLeadHours  = "booking.reminder.lead_hours"
)

func templateSubjectKey(kind models.TemplateKind) string {
	return fmt.Sprintf("booking.template.%s.subject", kind)
}

func templateBodyKey(kind models.TemplateKind) string {
	return fmt.Sprintf("booking.template.%s.body", kind)
}

// ConfigProvider supplies the runtime notification configuration.
type ConfigProvider interface {
	GetRuntimeConfig(ctx context.Context) (models.BookingNotificationConfig, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

func isEmail(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}

type SettingsService struct {
	repo     repositories.SettingRepository
	defaults models.SMTPSettings
	log      zerolog.Logger
}

// NewSettingsService reads stored settings, falling back to defaults for SMTP
// fields that were never stored.
func NewSettingsService(repo repositories.SettingRepository, defaults models.SMTPSettings, log zerolog.Logger) *SettingsService {
	return &SettingsService{
		repo:     repo,
		defaults: defaults,
		log:      log.With().Str("component", "settings_service").Logger(),
	}
}

func (s *SettingsService) GetRuntimeConfig(ctx context.Context) (models.BookingNotificationConfig, error) {
	raw, err := s.repo.GetByPrefix(ctx, settingsPrefix)
	if err != nil {
		return models.BookingNotificationConfig{}, err
	}
	return s.build(raw), nil
}

func (s *SettingsService) build(raw map[string]string) models.BookingNotificationConfig {
	str := func(key, def string) string {
		if v := strings.TrimSpace(raw[key]); v != "" {
			return v
		}
		return def
	}
	num := func(key string, def int) int {
		if n, err := strconv.Atoi(strings.TrimSpace(raw[key])); err == nil {
			return n
		}
		return def
	}
	flag := func(key string, def bool) bool {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw[key])); err == nil {
			return b
		}
		return def
	}

	smtp := models.SMTPSettings{
		Host:     str(KeySMTPHost, s.defaults.Host),
		Port:     num(KeySMTPPort, s.defaults.Port),
		Secure:   flag(KeySMTPSecure, s.defaults.Secure),
		Username: str(KeySMTPUsername, s.defaults.Username),
		Password: str(KeySMTPPassword, s.defaults.Password),
		From:     str(KeySMTPFrom, s.defaults.From),
		FromName: str(KeySMTPFromName, s.defaults.FromName),
	}
	if smtp.Port <= 0 || smtp.Port > 65535 {
		smtp.Port = models.DefaultSMTPPort
	}

	templates := make(map[models.TemplateKind]models.EmailTemplate, len(models.TemplateKinds))
	for _, kind := range models.TemplateKinds {
		templates[kind] = models.EmailTemplate{
			Subject: raw[templateSubjectKey(kind)],
			Body:    raw[templateBodyKey(kind)],
		}
	}

	return models.BookingNotificationConfig{
		SMTP:               smtp,
		AdminNotifyEnabled: flag(KeyAdminNotifyEnabled, false),
		AdminRecipients:    s.parseRecipients(raw[KeyAdminRecipients]),
		ReminderEnabled:    flag(KeyReminderEnabled, true),
		ReminderLeadHours:  models.ClampLeadHours(num(KeyReminderLeadHours, models.DefaultReminderLeadHours)),
		Templates:          templates,
	}
}

func (s *SettingsService) parseRecipients(v string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		addr := strings.TrimSpace(part)
		if addr == "" || seen[strings.ToLower(addr)] {
			continue
		}
		if !isEmail(addr) {
			s.log.Warn().Str("recipient", addr).Msg("ignoring invalid admin recipient")
			continue
		}
		seen[strings.ToLower(addr)] = true
		out = append(out, addr)
	}
	return out
}

type TemplatePatch struct {
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

// NotificationSettingsPatch is a partial update; nil fields are left as is.
type NotificationSettingsPatch struct {
	SMTPHost           *string                              `json:"smtp_host" binding:"omitempty,hostname_rfc1123|ip"`
	SMTPPort           *int                                 `json:"smtp_port" binding:"omitempty,min=1,max=65535"`
	SMTPSecure         *bool                                `json:"smtp_secure"`
	SMTPUsername       *string                              `json:"smtp_username"`
	SMTPPassword       *string                              `json:"smtp_password"`
	SMTPFrom           *string                              `json:"smtp_from" binding:"omitempty,email"`
	SMTPFromName       *string                              `json:"smtp_from_name" binding:"omitempty,max=120"`
	AdminNotifyEnabled *bool                                `json:"admin_notify_enabled"`
	AdminRecipients    []string                             `json:"admin_recipients" binding:"omitempty,dive,email"`
	ReminderEnabled    *bool                                `json:"reminder_enabled"`
	ReminderLeadHours  *int                                 `json:"reminder_lead_hours" binding:"omitempty,min=1,max=168"`
	Templates          map[models.TemplateKind]TemplatePatch `json:"templates"`
}

func (s *SettingsService) UpdateConfig(ctx context.Context, patch NotificationSettingsPatch) (models.BookingNotificationConfig, error) {
	if err := validate.Struct(patch); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.BookingNotificationConfig{}, invalid(verrs[0].Field(), "failed %q validation", verrs[0].Tag())
		}
		return models.BookingNotificationConfig{}, invalid("", "%v", err)
	}

	values := map[string]string{}
	setStr := func(key string, v *string) {
		if v != nil {
			values[key] = strings.TrimSpace(*v)
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			values[key] = strconv.Itoa(*v)
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			values[key] = strconv.FormatBool(*v)
		}
	}

	setStr(KeySMTPHost, patch.SMTPHost)
	setInt(KeySMTPPort, patch.SMTPPort)
	setBool(KeySMTPSecure, patch.SMTPSecure)
	setStr(KeySMTPUsername, patch.SMTPUsername)
	if patch.SMTPPassword != nil {
		values[KeySMTPPassword] = *patch.SMTPPassword
	}
	setStr(KeySMTPFrom, patch.SMTPFrom)
	setStr(KeySMTPFromName, patch.SMTPFromName)
	setBool(KeyAdminNotifyEnabled, patch.AdminNotifyEnabled)
	if patch.AdminRecipients != nil {
		values[KeyAdminRecipients] = strings.Join(patch.AdminRecipients, ",")
	}
	setBool(KeyReminderEnabled, patch.ReminderEnabled)
	setInt(KeyReminderLeadHours, patch.ReminderLeadHours)

	for kind, tp := range patch.Templates {
		if !knownTemplateKind(kind) {
			return models.BookingNotificationConfig{}, invalid("templates", "unknown template %q", kind)
		}
		if tp.Subject != nil {
			values[templateSubjectKey(kind)] = *tp.Subject
		}
		if tp.Body != nil {
			values[templateBodyKey(kind)] = *tp.Body
		}
	}

	if err := s.repo.Upsert(ctx, values); err != nil {
		return models.BookingNotificationConfig{}, err
	}
	s.log.Info().Int("keys", len(values)).Msg("booking notification settings updated")
	return s.GetRuntimeConfig(ctx)
}

func knownTemplateKind(kind models.TemplateKind) bool {
	for _, k := range models.TemplateKinds {
		if k == kind {
			return true
		}
	}
	return false
}
