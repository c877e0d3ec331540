// Package energy models subjective energy and focus readings and their period aggregates.
package energy

import (
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// Level bounds for a reading (inclusive).
const (
	MinLevel = 1
	MaxLevel = 10
)

// FocusQuality classifies how focused the user was when the reading was taken.
type FocusQuality string

const (
	FocusDeep       FocusQuality = "deep"
	FocusShallow    FocusQuality = "shallow"
	FocusDistracted FocusQuality = "distracted"
)

// Valid reports whether q is a known focus quality.
func (q FocusQuality) Valid() bool {
	switch q {
	case FocusDeep, FocusShallow, FocusDistracted:
		return true
	}
	return false
}

// Source identifies where a reading came from.
type Source string

const (
	SourceChromeExtension Source = "chrome_extension"
	SourceSMS             Source = "sms"
	SourceManual          Source = "manual"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceChromeExtension, SourceSMS, SourceManual:
		return true
	}
	return false
}

// Reading is a single energy/focus sample. Readings are append-only; only their author
// may correct them.
type Reading struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	UserID       string       `json:"user_id"`
	Timestamp    time.Time    `json:"timestamp"`
	EnergyLevel  int          `json:"energy_level"`
	FocusQuality FocusQuality `json:"focus_quality"`
	Source       Source       `json:"source"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// RecordRequest is the input for recording a new reading.
type RecordRequest struct {
	TenantID     string       `json:"tenant_id"`
	UserID       string       `json:"user_id"`
	Timestamp    time.Time    `json:"timestamp"`
	EnergyLevel  int          `json:"energy_level"`
	FocusQuality FocusQuality `json:"focus_quality"`
	Source       Source       `json:"source"`
	Notes        string       `json:"notes,omitempty"`
}

// Validate checks level bounds and enumerations.
func (r *RecordRequest) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required: %w", domain.ErrValidation)
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id is required: %w", domain.ErrValidation)
	}
	if err := validateLevel(r.EnergyLevel); err != nil {
		return err
	}
	if !r.FocusQuality.Valid() {
		return fmt.Errorf("invalid focus_quality %q: %w", r.FocusQuality, domain.ErrValidation)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("invalid source %q: %w", r.Source, domain.ErrValidation)
	}
	return nil
}

// UpdateRequest holds the correctable fields of a reading. Nil fields are left unchanged.
type UpdateRequest struct {
	EnergyLevel  *int          `json:"energy_level,omitempty"`
	FocusQuality *FocusQuality `json:"focus_quality,omitempty"`
	Notes        *string       `json:"notes,omitempty"`
}

// Apply validates the update and returns the corrected copy of r.
func (u *UpdateRequest) Apply(r Reading) (Reading, error) {
	if u.EnergyLevel != nil {
		if err := validateLevel(*u.EnergyLevel); err != nil {
			return r, err
		}
		r.EnergyLevel = *u.EnergyLevel
	}
	if u.FocusQuality != nil {
		if !u.FocusQuality.Valid() {
			return r, fmt.Errorf("invalid focus_quality %q: %w", *u.FocusQuality, domain.ErrValidation)
		}
		r.FocusQuality = *u.FocusQuality
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	return r, nil
}

func validateLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return fmt.Errorf("energy_level %d out of range [%d,%d]: %w", level, MinLevel, MaxLevel, domain.ErrValidation)
	}
	return nil
}

// PeriodSummary aggregates readings over a closed time window.
type PeriodSummary struct {
	AvgEnergy         float64 `json:"avg_energy"`
	DeepFocusCount    int     `json:"deep_focus_count"`
	ShallowFocusCount int     `json:"shallow_focus_count"`
	DistractedCount   int     `json:"distracted_count"`
	TotalReadings     int     `json:"total_readings"`
}

// Summarize computes the average energy (rounded to 2 decimals) and focus counts for the
// readings whose timestamp lies in [start, end]. An empty window yields a zero summary.
func Summarize(readings []Reading, start, end time.Time) PeriodSummary {
	var s PeriodSummary
	sum := 0
	for i := range readings {
		r := &readings[i]
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		s.TotalReadings++
		sum += r.EnergyLevel
		switch r.FocusQuality {
		case FocusDeep:
			s.DeepFocusCount++
		case FocusShallow:
			s.ShallowFocusCount++
		case FocusDistracted:
			s.DistractedCount++
		}
	}
	if s.TotalReadings > 0 {
		s.AvgEnergy = domain.Round2(float64(sum) / float64(s.TotalReadings))
	}
	return s
}
