package notifications

import (
	"context"
	"log/slog"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogEmail records the email instead of sending it.
type LogEmail struct {
	log *slog.Logger
}

func NewLogEmail(log *slog.Logger) *LogEmail {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmail{log: log}
}

func (e *LogEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	e.log.InfoContext(ctx, "sos.email_simulated", "to", to, "subject", subject, "body", body)
	return nil
}
