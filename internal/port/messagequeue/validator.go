package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Every domain event must name its tenant.
// Subjects outside the flourisha namespace pass as long as they are JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch subject {
	case SubjectEnergyRecorded:
		target = &EnergyRecordedPayload{}
	case SubjectOKRProgress:
		target = &OKRProgressPayload{}
	case SubjectOKRTagged:
		target = &OKRTaggedPayload{}
	case SubjectExtractionFeedback:
		target = &ExtractionFeedbackPayload{}
	case SubjectExtractionValidation:
		target = &ExtractionValidationPayload{}
	default:
		if !strings.HasPrefix(subject, "flourisha.") {
			return nil
		}
		target = &Audience{}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if AudienceOf(data).TenantID == "" {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("tenant_id is required"))
	}
	return nil
}

// AudienceOf extracts the audience fields from an event payload.
func AudienceOf(data []byte) Audience {
	var a Audience
	_ = json.Unmarshal(data, &a)
	return a
}
