package models

const (
	MinReminderLeadHours     = 1
	MaxReminderLeadHours     = 168
	DefaultReminderLeadHours = 24
	DefaultSMTPPort          = 587
)

type TemplateKind string

const (
	TemplateCustomerCreated  TemplateKind = "customer_created"
	TemplateAdminCreated     TemplateKind = "admin_created"
	TemplateCustomerReminder TemplateKind = "customer_reminder"
)

var TemplateKinds = []TemplateKind{
	TemplateCustomerCreated,
	TemplateAdminCreated,
	TemplateCustomerReminder,
}

// EmailTemplate holds subject and body with {{placeholder}} tokens. Empty
// fields fall back to the compiled-in template independently.
type EmailTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SMTPSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Secure   bool   `json:"secure"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
}

// Complete reports whether enough is known to attempt delivery.
func (s SMTPSettings) Complete() bool {
	return s.Host != "" && s.Port > 0 && s.From != ""
}

// BookingNotificationConfig is the sanitized runtime configuration consumed
// by reservation creation and the reminder scheduler.
type BookingNotificationConfig struct {
	SMTP               SMTPSettings                   `json:"smtp"`
	AdminNotifyEnabled bool                           `json:"admin_notify_enabled"`
	AdminRecipients    []string                       `json:"admin_recipients"`
	ReminderEnabled    bool                           `json:"reminder_enabled"`
	ReminderLeadHours  int                            `json:"reminder_lead_hours"`
	Templates          map[TemplateKind]EmailTemplate `json:"templates"`
}

// Template returns the stored override for kind, which may be empty.
func (c BookingNotificationConfig) Template(kind TemplateKind) EmailTemplate {
	if c.Templates == nil {
		return EmailTemplate{}
	}
	return c.Templates[kind]
}

// ClampLeadHours bounds h to [MinReminderLeadHours, MaxReminderLeadHours].
func ClampLeadHours(h int) int {
	if h < MinReminderLeadHours {
		return MinReminderLeadHours
	}
	if h > MaxReminderLeadHours {
		return MaxReminderLeadHours
	}
	return h
}
