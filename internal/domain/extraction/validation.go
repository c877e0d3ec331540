package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// RuleType selects the checker that evaluates a rule.
type RuleType string

const (
	RuleEntityExists   RuleType = "entity_exists"
	RuleFieldFormat    RuleType = "field_format"
	RuleCrossReference RuleType = "cross_reference"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleEntityExists, RuleFieldFormat, RuleCrossReference:
		return true
	}
	return false
}

// OnFailure is the action a failed rule requests.
type OnFailure string

const (
	OnFailureFlagReview  OnFailure = "flag_review"
	OnFailureAutoCorrect OnFailure = "auto_correct"
	OnFailureWarn        OnFailure = "warn"
)

// Valid reports whether o is a known action.
func (o OnFailure) Valid() bool {
	switch o {
	case OnFailureFlagReview, OnFailureAutoCorrect, OnFailureWarn:
		return true
	}
	return false
}

// Severity ranks a rule.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rule is an automated check applied to extracted documents. ValidationQuery is a
// checker-specific descriptor (a regular expression for field_format rules).
type Rule struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	RuleName        string    `json:"rule_name"`
	RuleType        RuleType  `json:"rule_type"`
	EntityType      string    `json:"entity_type,omitempty"`
	FieldToCheck    string    `json:"field_to_check,omitempty"`
	ValidationQuery string    `json:"validation_query,omitempty"`
	OnFailure       OnFailure `json:"on_failure"`
	Severity        Severity  `json:"severity"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateRuleRequest is the input for defining a rule.
type CreateRuleRequest struct {
	RuleName        string    `json:"rule_name"`
	RuleType        RuleType  `json:"rule_type"`
	EntityType      string    `json:"entity_type,omitempty"`
	FieldToCheck    string    `json:"field_to_check,omitempty"`
	ValidationQuery string    `json:"validation_query,omitempty"`
	OnFailure       OnFailure `json:"on_failure,omitempty"`
	Severity        Severity  `json:"severity,omitempty"`
}

// Validate checks enumerations and fills defaults.
func (r *CreateRuleRequest) Validate() error {
	if r.RuleName == "" {
		return fmt.Errorf("rule_name is required: %w", domain.ErrValidation)
	}
	if !r.RuleType.Valid() {
		return fmt.Errorf("invalid rule_type %q: %w", r.RuleType, domain.ErrValidation)
	}
	if r.OnFailure == "" {
		r.OnFailure = OnFailureFlagReview
	}
	if !r.OnFailure.Valid() {
		return fmt.Errorf("invalid on_failure %q: %w", r.OnFailure, domain.ErrValidation)
	}
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("invalid severity %q: %w", r.Severity, domain.ErrValidation)
	}
	if r.RuleType == RuleFieldFormat && r.FieldToCheck == "" {
		return fmt.Errorf("field_to_check is required for field_format rules: %w", domain.ErrValidation)
	}
	if r.RuleType == RuleFieldFormat && r.ValidationQuery != "" {
		if _, err := regexp.Compile(r.ValidationQuery); err != nil {
			return fmt.Errorf("validation_query is not a valid pattern (%v): %w", err, domain.ErrValidation)
		}
	}
	return nil
}

// Result is the append-only outcome of one rule applied to one document.
type Result struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"document_id"`
	RuleID         string          `json:"rule_id"`
	Passed         bool            `json:"passed"`
	Details        json.RawMessage `json:"details,omitempty"`
	AutoCorrected  bool            `json:"auto_corrected"`
	OriginalValue  string          `json:"original_value,omitempty"`
	CorrectedValue string          `json:"corrected_value,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ResultRequest is the input for recording a validation result.
type ResultRequest struct {
	DocumentID     string          `json:"document_id"`
	RuleID         string          `json:"rule_id"`
	Passed         bool            `json:"passed"`
	Details        json.RawMessage `json:"details,omitempty"`
	AutoCorrected  bool            `json:"auto_corrected"`
	OriginalValue  string          `json:"original_value,omitempty"`
	CorrectedValue string          `json:"corrected_value,omitempty"`
}

// Validate checks the references and the details payload.
func (r *ResultRequest) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("document_id is required: %w", domain.ErrValidation)
	}
	if r.RuleID == "" {
		return fmt.Errorf("rule_id is required: %w", domain.ErrValidation)
	}
	return validJSON("details", r.Details)
}
