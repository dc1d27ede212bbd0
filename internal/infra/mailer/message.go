package mailer

import (
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"condo_collections/internal/domain/notification"
)

// newMessage builds the mail for msg. When an HTML body is present the
// message is multipart/alternative with the plain text first.
func newMessage(from string, msg notification.Message, now time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("mailer: invalid recipient %q: %w", msg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageID()

	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	return m, nil
}
