package services

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"tablebook-backend/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

var defaultTemplates = map[models.TemplateKind]models.EmailTemplate{
	models.TemplateCustomerCreated: {
		Subject: "We received your reservation at {{site_name}}",
		Body: "Hello {{customer_name}},\n\n" +
			"Thank you for booking with {{site_name}}. We have received your request for " +
			"{{party_size}} guest(s) on {{reservation_date}} at {{reservation_time}}.\n" +
			"Reservation number: {{reservation_id}}\n" +
			"Special requests: {{special_requests}}\n\n" +
			"We will contact you if anything changes.\n\n{{site_name}}",
	},
	models.TemplateAdminCreated: {
		Subject: "New reservation #{{reservation_id}} on {{reservation_date}} {{reservation_time}}",
		Body: "A new reservation was submitted.\n\n" +
			"Name: {{customer_name}}\n" +
			"Email: {{customer_email}}\n" +
			"Phone: {{customer_phone}}\n" +
			"Date: {{reservation_date}}\n" +
			"Time: {{reservation_time}}\n" +
			"Party size: {{party_size}}\n" +
			"Special requests: {{special_requests}}\n" +
			"Status: {{status}}",
	},
	models.TemplateCustomerReminder: {
		Subject: "Reminder: your table at {{site_name}} on {{reservation_date}}",
		Body: "Hello {{customer_name}},\n\n" +
			"This is a reminder of your reservation for {{party_size}} guest(s) on " +
			"{{reservation_date}} at {{reservation_time}}.\n\n" +
			"We look forward to seeing you.\n\n{{site_name}}",
	},
}

// DefaultTemplate returns the compiled-in template for kind.
func DefaultTemplate(kind models.TemplateKind) models.EmailTemplate {
	return defaultTemplates[kind]
}

// ResolveTemplate picks subject and body independently: a non-blank custom
// field wins, otherwise the compiled-in one is used.
func ResolveTemplate(kind models.TemplateKind, custom models.EmailTemplate) models.EmailTemplate {
	fallback := DefaultTemplate(kind)
	out := fallback
	if strings.TrimSpace(custom.Subject) != "" {
		out.Subject = custom.Subject
	}
	if strings.TrimSpace(custom.Body) != "" {
		out.Body = custom.Body
	}
	return out
}

type RenderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

// RenderTemplate substitutes every {{identifier}} in subject and body.
// Unknown identifiers render as "".
func RenderTemplate(tpl models.EmailTemplate, vars map[string]string) RenderedEmail {
	text := substitute(tpl.Body, vars)
	return RenderedEmail{
		Subject: strings.TrimSpace(strings.ReplaceAll(substitute(tpl.Subject, vars), "\n", " ")),
		Text:    text,
		HTML:    textToHTML(text),
	}
}

func substitute(s string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		if len(m) < 2 {
			return ""
		}
		return vars[m[1]]
	})
}

func textToHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}

// ReservationVariables builds the placeholder set for reservation emails.
func ReservationVariables(r *models.Reservation, siteName string, leadHours int) map[string]string {
	vars := map[string]string{
		"site_name":        siteName,
		"reservation_id":   strconv.FormatUint(uint64(r.ID), 10),
		"customer_name":    r.CustomerName,
		"customer_email":   r.CustomerEmail,
		"customer_phone":   r.CustomerPhone,
		"reservation_date": r.DateKey(),
		"reservation_time": r.ReservationTime,
		"party_size":       strconv.Itoa(r.PartySize),
		"special_requests": r.SpecialRequests,
		"status":           string(r.Status),
	}
	if leadHours > 0 {
		vars["lead_hours"] = strconv.Itoa(leadHours)
	}
	return vars
}
