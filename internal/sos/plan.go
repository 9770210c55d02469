package sos

import (
	"fmt"
	"time"

	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/notifications"
)

type SMS struct {
	ContactID string
	To        string
	Body      string
}

type Email struct {
	ContactID string
	To        string
	Subject   string
	Body      string
}

// Plan is every delivery one SOS will attempt.
type Plan struct {
	SMS    []SMS
	Emails []Email
	Push   []notifications.PushMessage

	// contacts with neither phone nor email
	Unreachable []user.TrustedContact
	// contacts with an email that maps to no app user holding a push token
	NoPush []user.TrustedContact
}

// BuildPlan has no side effects; callers decide how each entry is delivered.
func BuildPlan(caller user.User, targets []Target, now time.Time) Plan {
	p := Plan{}
	loc := caller.CurrentLocation

	smsBody := fmt.Sprintf("SOS! %s needs help. Last known location: %s", caller.Name, mapsLink(loc))
	subject := fmt.Sprintf("SOS Alert from Raksha App - %s needs help!", caller.Name)
	emailBody := fmt.Sprintf("%s has triggered an SOS alert. Last known location: %s", caller.Name, mapsLink(loc))

	for _, t := range targets {
		c := t.Contact

		if c.HasPhone() {
			p.SMS = append(p.SMS, SMS{ContactID: c.ID, To: c.Phone, Body: smsBody})
		}
		if c.HasEmail() {
			p.Emails = append(p.Emails, Email{ContactID: c.ID, To: c.Email, Subject: subject, Body: emailBody})
		}
		if !c.HasPhone() && !c.HasEmail() {
			p.Unreachable = append(p.Unreachable, c)
		}

		if !c.HasEmail() {
			continue
		}
		if t.PushToken == "" {
			p.NoPush = append(p.NoPush, c)
			continue
		}

		p.Push = append(p.Push, notifications.PushMessage{
			To:    t.PushToken,
			Sound: "default",
			Title: fmt.Sprintf("SOS Alert from %s", caller.Name),
			Body:  fmt.Sprintf("Your contact %s needs help! Last location: %s.", caller.Name, pushLocation(loc)),
			Data: notifications.PushData{
				Type:      "SOS",
				UserID:    caller.ID,
				UserName:  caller.Name,
				Location:  loc,
				Timestamp: now.UnixMilli(),
			},
		})
	}

	return p
}

func mapsLink(loc *user.Location) string {
	if loc == nil {
		return "unavailable"
	}
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", loc.Latitude, loc.Longitude)
}

func pushLocation(loc *user.Location) string {
	if loc == nil {
		return "unavailable"
	}
	return fmt.Sprintf("Lat %.4f, Lng %.4f", loc.Latitude, loc.Longitude)
}
