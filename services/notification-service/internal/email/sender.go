package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender delivers over plain unauthenticated SMTP, which is what the
// local Mailpit relay and most in-cluster relays expect.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@turnoline.local"
	}
	return &SMTPSender{
		addr: strings.TrimSpace(host) + ":" + strings.TrimSpace(port),
		from: from,
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String()))
}
