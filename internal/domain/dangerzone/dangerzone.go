package dangerzone

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNameTaken       = errors.New("danger zone name already exists")
	ErrInvalidSeverity = errors.New("severity must be one of low, medium, high")
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

const DefaultDescription = "Area identified as potentially unsafe."

// Point is a [latitude, longitude] pair.
type Point [2]float64

type Zone struct {
	ID          string    `json:"_id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Coordinates []Point   `json:"coordinates" bson:"coordinates"`
	Description string    `json:"description" bson:"description"`
	Severity    Severity  `json:"severity" bson:"severity"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Test zone defaults used by the seed endpoint.
const (
	TestZoneName        = "Test Danger Zone"
	TestZoneDescription = "A simulated unsafe area for testing."
	TestZoneSeverity    = SeverityHigh
)

// SeedCoordinates is the small closed square every seeded zone uses.
func SeedCoordinates() []Point {
	return []Point{
		{16.3420, 80.4430},
		{16.3420, 80.4440},
		{16.3430, 80.4440},
		{16.3430, 80.4430},
		{16.3420, 80.4430},
	}
}

// SeedRequest carries optional overrides for the seeded test zone.
type SeedRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Severity    *string `json:"severity"`
}

// NewTestZone applies defaults to req and builds an active zone with the fixed test polygon.
func NewTestZone(req SeedRequest, now time.Time) (Zone, error) {
	name := TestZoneName
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name = strings.TrimSpace(*req.Name)
	}

	description := TestZoneDescription
	if req.Description != nil {
		description = *req.Description
	}
	if description == "" {
		description = DefaultDescription
	}

	severity := TestZoneSeverity
	if req.Severity != nil && *req.Severity != "" {
		severity = Severity(strings.ToLower(strings.TrimSpace(*req.Severity)))
	}
	if !severity.IsValid() {
		return Zone{}, ErrInvalidSeverity
	}

	return Zone{
		ID:          uuid.NewString(),
		Name:        name,
		Coordinates: SeedCoordinates(),
		Description: description,
		Severity:    severity,
		IsActive:    true,
		CreatedAt:   now.UTC(),
	}, nil
}

// ActiveOnly keeps zones flagged active, preserving order.
func ActiveOnly(zones []Zone) []Zone {
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			out = append(out, z)
		}
	}
	return out
}
