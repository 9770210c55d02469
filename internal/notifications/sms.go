package notifications

import (
	"context"
	"log/slog"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMS records the text instead of sending it.
type LogSMS struct {
	log *slog.Logger
}

func NewLogSMS(log *slog.Logger) *LogSMS {
	if log == nil {
		log = slog.Default()
	}
	return &LogSMS{log: log}
}

func (s *LogSMS) SendSMS(ctx context.Context, to, body string) error {
	s.log.InfoContext(ctx, "sos.sms_simulated", "to", to, "body", body)
	return nil
}

type TwilioConfig struct {
	AccountSid          string
	AuthToken           string
	MessagingServiceSid string
}

// TwilioSMS sends texts through a Twilio messaging service.
type TwilioSMS struct {
	client *twilio.RestClient
	cfg    TwilioConfig
	log    *slog.Logger
}

func NewTwilioSMS(cfg TwilioConfig, log *slog.Logger) *TwilioSMS {
	if log == nil {
		log = slog.Default()
	}

	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: cfg.AccountSid,
		Password: cfg.AuthToken,
	})

	return &TwilioSMS{client: client, cfg: cfg, log: log}
}

func (s *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(s.cfg.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := s.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.log.InfoContext(ctx, "sos.sms_sent", "to", to, "sid", sid)

	return nil
}
