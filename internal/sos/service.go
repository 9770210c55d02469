package sos

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/notifications"
	"github.com/geocoder89/raksha/internal/observability"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type Service struct {
	users    UserStore
	resolver *Resolver
	sms      notifications.SMSSender
	email    notifications.EmailSender
	push     notifications.PushSender
	prom     *observability.Prom
	log      *slog.Logger
	now      func() time.Time
}

type Deps struct {
	Users UserStore
	SMS   notifications.SMSSender
	Email notifications.EmailSender
	Push  notifications.PushSender
	Prom  *observability.Prom
	Log   *slog.Logger
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	if d.SMS == nil {
		d.SMS = notifications.NewLogSMS(log)
	}
	if d.Email == nil {
		d.Email = notifications.NewLogEmail(log)
	}

	return &Service{
		users:    d.Users,
		resolver: NewResolver(d.Users, log),
		sms:      d.SMS,
		email:    d.Email,
		push:     d.Push,
		prom:     d.Prom,
		log:      log,
		now:      time.Now,
	}
}

// Trigger fans an SOS out to the caller's contacts. Only a missing caller or a
// failed caller lookup is returned; delivery failures are logged and absorbed.
func (s *Service) Trigger(ctx context.Context, userID string) (Plan, error) {
	caller, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Plan{}, err
	}

	if s.prom != nil {
		s.prom.SOSTriggersTotal.Inc()
	}

	s.log.InfoContext(ctx, "sos.triggered",
		"contacts", len(caller.TrustedContacts),
		"has_location", caller.CurrentLocation != nil,
	)

	if len(caller.TrustedContacts) == 0 {
		s.log.InfoContext(ctx, "sos.no_contacts")
		return Plan{}, nil
	}

	targets := s.resolver.Resolve(ctx, caller.TrustedContacts)
	plan := BuildPlan(caller, targets, s.now())

	s.dispatch(ctx, plan)

	return plan, nil
}

func (s *Service) dispatch(ctx context.Context, plan Plan) {
	for _, m := range plan.SMS {
		if err := s.sms.SendSMS(ctx, m.To, m.Body); err != nil {
			s.log.WarnContext(ctx, "sos.sms_failed", "contact_id", m.ContactID, "err", err)
			continue
		}
		s.countChannel("sms")
	}

	for _, e := range plan.Emails {
		if err := s.email.SendEmail(ctx, e.To, e.Subject, e.Body); err != nil {
			s.log.WarnContext(ctx, "sos.email_failed", "contact_id", e.ContactID, "err", err)
			continue
		}
		s.countChannel("email")
	}

	for _, c := range plan.Unreachable {
		s.log.InfoContext(ctx, "sos.no_channel", "contact_id", c.ID, "contact_name", c.Name)
		s.countChannel("none")
	}

	for _, c := range plan.NoPush {
		s.log.InfoContext(ctx, "sos.no_push_token", "contact_id", c.ID)
	}

	if len(plan.Push) == 0 || s.push == nil {
		return
	}

	s.log.InfoContext(ctx, "sos.push_prepared", "count", len(plan.Push))

	start := time.Now()
	res, err := s.push.SendPush(ctx, plan.Push)
	elapsed := time.Since(start)

	if err != nil {
		result := "failed"
		if errors.Is(err, notifications.ErrCircuitOpen) {
			result = "circuit_open"
		}
		s.observePush(result, elapsed)
		s.log.ErrorContext(ctx, "sos.push_failed", "count", len(plan.Push), "status", res.StatusCode, "err", err)
		return
	}

	s.observePush("sent", elapsed)
	s.countChannelN("push", len(plan.Push))
	s.log.InfoContext(ctx, "sos.push_sent",
		"count", len(plan.Push),
		"status", res.StatusCode,
		"response", string(res.Body),
	)
}

func (s *Service) countChannel(channel string) {
	s.countChannelN(channel, 1)
}

func (s *Service) countChannelN(channel string, n int) {
	if s.prom != nil {
		s.prom.SOSChannelsTotal.WithLabelValues(channel).Add(float64(n))
	}
}

func (s *Service) observePush(result string, d time.Duration) {
	if s.prom != nil {
		s.prom.ObservePushBatch(result, d)
	}
}
