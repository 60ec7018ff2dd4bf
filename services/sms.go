package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TextSender delivers a short text message to a phone number.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

type twilioMessenger interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type SMSNotifier struct {
	api            twilioMessenger
	fromNumber     string
	whatsAppNumber string
	log            zerolog.Logger
}

// NewSMSNotifier returns nil when Twilio is not configured, which disables
// the SMS mirror.
func NewSMSNotifier(accountSID, authToken, fromNumber, whatsAppNumber string, log zerolog.Logger) *SMSNotifier {
	if accountSID == "" || authToken == "" || (fromNumber == "" && whatsAppNumber == "") {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSNotifier{
		api:            client.Api,
		fromNumber:     fromNumber,
		whatsAppNumber: whatsAppNumber,
		log:            log.With().Str("component", "sms_notifier").Logger(),
	}
}

// SendText uses WhatsApp for E.164 numbers when a WhatsApp sender is
// configured, plain SMS otherwise.
func (s *SMSNotifier) SendText(_ context.Context, to, body string) error {
	to = strings.ReplaceAll(strings.TrimSpace(to), " ", "")

	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	if strings.HasPrefix(to, "+") && s.whatsAppNumber != "" {
		params.SetTo("whatsapp:" + to)
		params.SetFrom("whatsapp:" + s.whatsAppNumber)
	} else {
		params.SetTo(to)
		params.SetFrom(s.fromNumber)
	}

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp != nil && resp.Sid != nil {
		s.log.Debug().Str("sid", *resp.Sid).Msg("text message queued")
	}
	return nil
}
