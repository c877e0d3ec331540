// Package extraction models human corrections to document extraction, few-shot examples,
// validation rules and results, and the review queue derived from them.
package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// CorrectionType classifies a human correction.
type CorrectionType string

const (
	CorrectionMissing    CorrectionType = "missing"
	CorrectionIncorrect  CorrectionType = "incorrect"
	CorrectionExtra      CorrectionType = "extra"
	CorrectionWrongField CorrectionType = "wrong_field"
)

// Valid reports whether c is a known correction type.
func (c CorrectionType) Valid() bool {
	switch c {
	case CorrectionMissing, CorrectionIncorrect, CorrectionExtra, CorrectionWrongField:
		return true
	}
	return false
}

// Feedback records one human correction of an extracted field. Append-only.
type Feedback struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	DocumentID      string          `json:"document_id"`
	FieldName       string          `json:"field_name"`
	ExtractedValue  json.RawMessage `json:"extracted_value,omitempty"`
	CorrectedValue  json.RawMessage `json:"corrected_value,omitempty"`
	CorrectionType  CorrectionType  `json:"correction_type"`
	CorrectionNotes string          `json:"correction_notes,omitempty"`
	DocumentContext string          `json:"document_context,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	UsedForTraining bool            `json:"used_for_training"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CorrectionRequest is the input for recording a correction.
type CorrectionRequest struct {
	DocumentID      string          `json:"document_id"`
	FieldName       string          `json:"field_name"`
	ExtractedValue  json.RawMessage `json:"extracted_value,omitempty"`
	CorrectedValue  json.RawMessage `json:"corrected_value,omitempty"`
	CorrectionType  CorrectionType  `json:"correction_type"`
	Notes           string          `json:"notes,omitempty"`
	DocumentContext string          `json:"document_context,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
}

// Validate checks required fields, the correction type and JSON payloads.
func (r *CorrectionRequest) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("document_id is required: %w", domain.ErrValidation)
	}
	if r.FieldName == "" {
		return fmt.Errorf("field_name is required: %w", domain.ErrValidation)
	}
	if !r.CorrectionType.Valid() {
		return fmt.Errorf("invalid correction_type %q: %w", r.CorrectionType, domain.ErrValidation)
	}
	if err := validJSON("extracted_value", r.ExtractedValue); err != nil {
		return err
	}
	return validJSON("corrected_value", r.CorrectedValue)
}

func validJSON(field string, raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON: %w", field, domain.ErrValidation)
	}
	return nil
}
