package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailNotifier sends plain-text alerts over SMTP.
type EmailNotifier struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

func (e *EmailNotifier) Type() string { return "email" }

func (e *EmailNotifier) Validate() error {
	if e.Host == "" {
		return errors.New("email: host is required")
	}
	if e.From == "" {
		return errors.New("email: from is required")
	}
	if len(e.To) == 0 {
		return errors.New("email: at least one recipient is required")
	}
	return nil
}

func (e *EmailNotifier) Send(ctx context.Context, summary Summary) error {
	port := e.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", e.Host, port)

	subject := fmt.Sprintf("%s %s is %s", summary.Glyph, summary.MonitorName, summary.Label)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&msg, "Monitor: %s\r\nStatus: %s\r\nMessage: %s\r\nAt: %s\r\n",
		summary.MonitorName,
		summary.Label,
		summary.Message,
		summary.At.Format("2006-01-02 15:04:05 UTC"),
	)

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}

	// net/smtp has no context support; the router's dispatch timeout is
	// the effective bound.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.From, e.To, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email: send: %w", ctx.Err())
	}
}
