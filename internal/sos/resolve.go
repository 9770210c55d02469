// Package sos turns a user's distress signal into SMS, email and push deliveries
// to their trusted contacts.
package sos

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/raksha/internal/domain/user"
)

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Target is a contact plus the push token of the app account sharing its email, if any.
type Target struct {
	Contact   user.TrustedContact
	PushToken string
}

type Resolver struct {
	users UserLookup
	log   *slog.Logger
}

func NewResolver(users UserLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{users: users, log: log}
}

// Resolve looks contacts up one at a time, in list order. Lookup failures
// leave the target without a push token and are only logged.
func (r *Resolver) Resolve(ctx context.Context, contacts []user.TrustedContact) []Target {
	out := make([]Target, 0, len(contacts))

	for _, c := range contacts {
		t := Target{Contact: c}

		if c.HasEmail() {
			u, err := r.users.GetByEmail(ctx, c.Email)
			switch {
			case err == nil:
				t.PushToken = u.ExpoPushToken
			case errors.Is(err, user.ErrNotFound):
			default:
				r.log.WarnContext(ctx, "sos.contact_lookup_failed", "contact_id", c.ID, "err", err)
			}
		}

		out = append(out, t)
	}

	return out
}
