package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"tablebook-backend/metrics"
	"tablebook-backend/models"
)

// Reasons reported by the gateway. Expected failures are results, not errors.
const (
	ReasonNotConfigured = "not_configured"
	ReasonSendFailed    = "send_failed"
	ReasonVerifyFailed  = "verify_failed"
)

const defaultSendTimeout = 30 * time.Second

type OutgoingEmail struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Override takes precedence over stored settings, field by field.
	Override *models.SMTPSettings
}

type SendResult struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

type VerifyResult struct {
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, msg OutgoingEmail) SendResult
}

type mailTransport interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
	DialWithContext(ctx context.Context) error
	Close() error
}

type transportFactory func(s models.SMTPSettings, timeout time.Duration) (mailTransport, error)

// MailGateway sends email over SMTP using the runtime configuration. The
// configured client is cached and rebuilt only when host, port, TLS mode or
// credentials change.
type MailGateway struct {
	config       ConfigProvider
	defaults     models.SMTPSettings
	timeout      time.Duration
	newTransport transportFactory
	log          zerolog.Logger

	mu        sync.Mutex
	signature string
	transport mailTransport
}

func NewMailGateway(config ConfigProvider, defaults models.SMTPSettings, timeout time.Duration, log zerolog.Logger) *MailGateway {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &MailGateway{
		config:       config,
		defaults:     defaults,
		timeout:      timeout,
		newTransport: newGoMailTransport,
		log:          log.With().Str("component", "mail_gateway").Logger(),
	}
}

func newGoMailTransport(s models.SMTPSettings, timeout time.Duration) (mailTransport, error) {
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithTimeout(timeout),
	}
	if s.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	}
	return mail.NewClient(s.Host, opts...)
}

func connectionSignature(s models.SMTPSettings) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%t\x00%s\x00%s", s.Host, s.Port, s.Secure, s.Username, s.Password)))
	return hex.EncodeToString(sum[:])
}

// resolveSMTP applies override -> stored settings -> static defaults.
func (g *MailGateway) resolveSMTP(ctx context.Context, override *models.SMTPSettings) models.SMTPSettings {
	base := g.defaults
	if g.config != nil {
		cfg, err := g.config.GetRuntimeConfig(ctx)
		if err != nil {
			g.log.Warn().Err(err).Msg("falling back to static smtp settings")
		} else {
			base = cfg.SMTP
		}
	}
	if override == nil {
		return base
	}
	return mergeSMTP(base, *override)
}

func mergeSMTP(base, o models.SMTPSettings) models.SMTPSettings {
	out := base
	if o.Host != "" {
		out.Host = o.Host
	}
	if o.Port > 0 {
		out.Port = o.Port
	}
	if o.Secure {
		out.Secure = true
	}
	if o.Username != "" {
		out.Username = o.Username
	}
	if o.Password != "" {
		out.Password = o.Password
	}
	if o.From != "" {
		out.From = o.From
	}
	if o.FromName != "" {
		out.FromName = o.FromName
	}
	return out
}

func (g *MailGateway) Send(ctx context.Context, msg OutgoingEmail) SendResult {
	smtp := g.resolveSMTP(ctx, msg.Override)
	if !smtp.Complete() {
		metrics.IncEmail(ReasonNotConfigured)
		return SendResult{Reason: ReasonNotConfigured, Message: "smtp host, port and from address are required"}
	}

	m, err := buildMessage(smtp, msg)
	if err != nil {
		metrics.IncEmail(ReasonSendFailed)
		return SendResult{Reason: ReasonSendFailed, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.transportFor(smtp)
	if err != nil {
		metrics.IncEmail(ReasonSendFailed)
		return SendResult{Reason: ReasonSendFailed, Message: err.Error()}
	}
	if err := t.DialAndSendWithContext(ctx, m); err != nil {
		g.log.Warn().Err(err).Str("host", smtp.Host).Int("port", smtp.Port).Msg("email delivery failed")
		metrics.IncEmail(ReasonSendFailed)
		return SendResult{Reason: ReasonSendFailed, Message: err.Error()}
	}

	metrics.IncEmail("sent")
	res := SendResult{Sent: true}
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		res.MessageID = ids[0]
	}
	return res
}

func buildMessage(s models.SMTPSettings, msg OutgoingEmail) (*mail.Msg, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, fmt.Errorf("missing recipient")
	}

	m := mail.NewMsg()
	var err error
	if s.FromName != "" {
		err = m.FromFormat(s.FromName, s.From)
	} else {
		err = m.From(s.From)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.From, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// transportFor must be called with g.mu held.
func (g *MailGateway) transportFor(s models.SMTPSettings) (mailTransport, error) {
	sig := connectionSignature(s)
	if g.transport != nil && g.signature == sig {
		return g.transport, nil
	}
	if g.transport != nil {
		_ = g.transport.Close()
		g.log.Info().Str("host", s.Host).Int("port", s.Port).Msg("smtp settings changed, rebuilding client")
	}
	t, err := g.newTransport(s, g.timeout)
	if err != nil {
		g.transport, g.signature = nil, ""
		return nil, fmt.Errorf("failed to configure smtp client: %w", err)
	}
	g.transport, g.signature = t, sig
	return t, nil
}

// VerifyConnection dials and authenticates against s without sending mail.
func (g *MailGateway) VerifyConnection(ctx context.Context, s models.SMTPSettings) VerifyResult {
	if !s.Complete() {
		return VerifyResult{Reason: ReasonNotConfigured, Message: "smtp host, port and from address are required"}
	}
	t, err := g.newTransport(s, g.timeout)
	if err != nil {
		return VerifyResult{Reason: ReasonVerifyFailed, Message: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := t.DialWithContext(ctx); err != nil {
		return VerifyResult{Reason: ReasonVerifyFailed, Message: err.Error()}
	}
	_ = t.Close()
	return VerifyResult{OK: true}
}

// ResolveForVerify merges a candidate override onto the current settings.
func (g *MailGateway) ResolveForVerify(ctx context.Context, override *models.SMTPSettings) models.SMTPSettings {
	return g.resolveSMTP(ctx, override)
}

func (g *MailGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport != nil {
		_ = g.transport.Close()
		g.transport, g.signature = nil, ""
	}
}
