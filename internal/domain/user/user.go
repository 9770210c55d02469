package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID              string           `json:"_id" bson:"_id"`
	Name            string           `json:"name" bson:"name"`
	Email           string           `json:"email" bson:"email"`
	PasswordHash    string           `json:"-" bson:"password"` // never expose hash in JSON
	Phone           string           `json:"phone" bson:"phone"`
	TrustedContacts []TrustedContact `json:"trustedContacts" bson:"trustedContacts"`
	CurrentLocation *Location        `json:"currentLocation" bson:"currentLocation,omitempty"`
	ExpoPushToken   string           `json:"expoPushToken,omitempty" bson:"expoPushToken,omitempty"`
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// Location is the last position a user reported.
type Location struct {
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

type PushTokenRequest struct {
	Token string `json:"token"`
}

// New builds a user ready to be stored. passwordHash must already be hashed.
func New(req RegisterRequest, passwordHash string, now time.Time) User {
	now = now.UTC()

	return User{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Email:           NormalizeEmail(req.Email),
		PasswordHash:    passwordHash,
		Phone:           strings.TrimSpace(req.Phone),
		TrustedContacts: []TrustedContact{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NormalizeEmail is applied on every write and lookup so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetLocation overwrites the last known location.
func (u *User) SetLocation(latitude, longitude float64, now time.Time) Location {
	loc := Location{
		Latitude:  latitude,
		Longitude: longitude,
		Timestamp: now.UTC(),
	}
	u.CurrentLocation = &loc
	u.touch(now)

	return loc
}

func (u *User) SetPushToken(token string, now time.Time) {
	u.ExpoPushToken = strings.TrimSpace(token)
	u.touch(now)
}

func (u *User) touch(now time.Time) {
	u.UpdatedAt = now.UTC()
}
