package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// Difficulty grades a few-shot example.
type Difficulty string

const (
	DifficultySimple   Difficulty = "simple"
	DifficultyStandard Difficulty = "standard"
	DifficultyComplex  Difficulty = "complex"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultySimple, DifficultyStandard, DifficultyComplex:
		return true
	}
	return false
}

// DefaultExamplePriority is assigned when a request leaves priority unset.
const DefaultExamplePriority = 50

// Example is a gold-standard extraction used for prompt tuning. Higher priority sorts first.
type Example struct {
	ID                  string          `json:"id"`
	TenantID            string          `json:"tenant_id"`
	ExampleName         string          `json:"example_name"`
	DocumentCategory    string          `json:"document_category"`
	Difficulty          Difficulty      `json:"difficulty"`
	DocumentDescription string          `json:"document_description,omitempty"`
	DocumentSnippet     string          `json:"document_snippet,omitempty"`
	ExpectedExtraction  json.RawMessage `json:"expected_extraction"`
	TimesUsed           int             `json:"times_used"`
	SuccessRate         *float64        `json:"success_rate,omitempty"`
	IsActive            bool            `json:"is_active"`
	Priority            int             `json:"priority"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CreateExampleRequest is the input for adding a few-shot example.
type CreateExampleRequest struct {
	ExampleName         string          `json:"example_name"`
	DocumentCategory    string          `json:"document_category"`
	Difficulty          Difficulty      `json:"difficulty,omitempty"`
	DocumentDescription string          `json:"document_description,omitempty"`
	DocumentSnippet     string          `json:"document_snippet,omitempty"`
	ExpectedExtraction  json.RawMessage `json:"expected_extraction"`
	Priority            *int            `json:"priority,omitempty"`
}

// Validate checks required fields and fills defaults.
func (r *CreateExampleRequest) Validate() error {
	if r.ExampleName == "" {
		return fmt.Errorf("example_name is required: %w", domain.ErrValidation)
	}
	if r.DocumentCategory == "" {
		return fmt.Errorf("document_category is required: %w", domain.ErrValidation)
	}
	if r.Difficulty == "" {
		r.Difficulty = DifficultyStandard
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q: %w", r.Difficulty, domain.ErrValidation)
	}
	if len(r.ExpectedExtraction) == 0 || !json.Valid(r.ExpectedExtraction) {
		return fmt.Errorf("expected_extraction must be valid JSON: %w", domain.ErrValidation)
	}
	if r.Priority == nil {
		p := DefaultExamplePriority
		r.Priority = &p
	}
	return nil
}

// ExampleFilter narrows example listings.
type ExampleFilter struct {
	Category   string     `json:"category,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	ActiveOnly bool       `json:"active_only"`
}

// RecordUsage returns e after one more use with the given outcome. SuccessRate becomes
// the running mean of all outcomes.
func (e Example) RecordUsage(success bool) Example {
	outcome := 0.0
	if success {
		outcome = 1
	}
	if e.SuccessRate == nil || e.TimesUsed == 0 {
		e.SuccessRate = &outcome
	} else {
		rate := (*e.SuccessRate*float64(e.TimesUsed) + outcome) / float64(e.TimesUsed+1)
		e.SuccessRate = &rate
	}
	e.TimesUsed++
	return e
}
