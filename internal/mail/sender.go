package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"intelbrief/backend/internal/config"
)

const defaultSendGridHost = "https://api.sendgrid.com"

var ErrMissingAPIKey = errors.New("mail: SENDGRID_API_KEY is not set")

// Sender delivers brief emails through SendGrid. The zero value is not
// usable; construct it with NewSender.
type Sender struct {
	apiKey string
	from   string
	host   string
}

func NewSender(cfg config.Config) Sender {
	return Sender{apiKey: cfg.SendGridAPIKey, from: cfg.SenderEmail, host: defaultSendGridHost}
}

// Enabled reports whether delivery is configured at all.
func (s Sender) Enabled() bool {
	return s.apiKey != ""
}

// Send posts one HTML email. It returns the upstream status string on
// success so delivery logs can record it.
func (s Sender) Send(ctx context.Context, subject, htmlBody, toEmail string) (string, error) {
	if s.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	message := sgmail.NewV3MailInit(
		sgmail.NewEmail("", s.from),
		subject,
		sgmail.NewEmail("", toEmail),
		sgmail.NewContent("text/html", htmlBody),
	)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid returned %d: %s", response.StatusCode, response.Body)
	}
	return fmt.Sprintf("status=%d", response.StatusCode), nil
}

// Subject builds the email subject from the resolved topic, truncated the
// same way for every delivery.
func Subject(topic string) string {
	const maxTopicRunes = 60
	runes := []rune(topic)
	if len(runes) > maxTopicRunes {
		runes = runes[:maxTopicRunes]
	}
	return "Brief: " + string(runes)
}
