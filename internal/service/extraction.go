package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/port/messagequeue"
)

// ExtractionService records human corrections and validation outcomes for extracted
// documents, keeps the few-shot example and rule catalogs, and builds the review queue.
// Everything is scoped to the caller's tenant.
type ExtractionService struct {
	Deps
	checkers *extraction.Registry
}

// NewExtractionService creates an ExtractionService with the built-in checkers.
func NewExtractionService(deps Deps) *ExtractionService {
	return &ExtractionService{Deps: deps, checkers: extraction.NewRegistry()}
}

// RegisterChecker installs the checker for a rule type, replacing any existing one.
func (s *ExtractionService) RegisterChecker(t extraction.RuleType, c extraction.Checker) {
	s.checkers.Register(t, c)
}

// RecordCorrection appends a correction of one extracted field.
func (s *ExtractionService) RecordCorrection(ctx context.Context, c access.Claims, req extraction.CorrectionRequest) (*extraction.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.document(ctx, c, req.DocumentID); err != nil {
		return nil, err
	}
	if err := s.requireTenant(ctx, c.TenantID); err != nil {
		return nil, err
	}

	f := &extraction.Feedback{
		TenantID:        c.TenantID,
		DocumentID:      req.DocumentID,
		FieldName:       req.FieldName,
		ExtractedValue:  req.ExtractedValue,
		CorrectedValue:  req.CorrectedValue,
		CorrectionType:  req.CorrectionType,
		CorrectionNotes: req.Notes,
		DocumentContext: req.DocumentContext,
		ReviewedBy:      req.ReviewedBy,
	}
	if f.ReviewedBy == "" {
		f.ReviewedBy = c.Subject
	}
	now := s.now()
	f.ReviewedAt = &now

	if err := s.Store.CreateFeedback(ctx, f); err != nil {
		return nil, err
	}

	s.Metrics.Count(ctx, cfotel.FeedbackRecords, c.TenantID, 1)
	s.audit(ctx, c, audit.ActionCreate, "extraction_feedback", f.ID, nil)
	s.Events.Publish(ctx, messagequeue.SubjectExtractionFeedback, c.TenantID, messagequeue.ExtractionFeedbackPayload{
		Audience:       messagequeue.Audience{TenantID: c.TenantID},
		FeedbackID:     f.ID,
		DocumentID:     f.DocumentID,
		FieldName:      f.FieldName,
		CorrectionType: string(f.CorrectionType),
	})
	return f, nil
}

// ListFeedback returns the corrections recorded for a document, oldest first.
func (s *ExtractionService) ListFeedback(ctx context.Context, c access.Claims, documentID string) ([]extraction.Feedback, error) {
	if _, err := s.document(ctx, c, documentID); err != nil {
		return nil, err
	}
	return s.Store.ListFeedback(ctx, c.TenantID, documentID)
}

// MarkForTraining flags corrections as consumed by a training export and returns how many
// were newly flagged.
func (s *ExtractionService) MarkForTraining(ctx context.Context, c access.Claims, ids []string) (int64, error) {
	if err := requireClaims(c); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("ids are required: %w", domain.ErrValidation)
	}
	n, err := s.Store.MarkFeedbackForTraining(ctx, c.TenantID, ids)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, c, audit.ActionUpdate, "extraction_feedback", "", map[string]any{"used_for_training": ids, "marked": n})
	return n, nil
}

// RecordValidationResult appends the outcome of one rule applied to one document.
func (s *ExtractionService) RecordValidationResult(ctx context.Context, c access.Claims, req extraction.ResultRequest) (*extraction.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.document(ctx, c, req.DocumentID); err != nil {
		return nil, err
	}
	if _, err := s.rule(ctx, c, req.RuleID); err != nil {
		return nil, err
	}
	if err := s.requireTenant(ctx, c.TenantID); err != nil {
		return nil, err
	}
	return s.createResult(ctx, c, &extraction.Result{
		DocumentID:     req.DocumentID,
		RuleID:         req.RuleID,
		Passed:         req.Passed,
		Details:        req.Details,
		AutoCorrected:  req.AutoCorrected,
		OriginalValue:  req.OriginalValue,
		CorrectedValue: req.CorrectedValue,
	})
}

// RunValidation evaluates every active rule of the tenant against the document's fields
// and records one result per evaluated rule. All results of a run are stored together or
// not at all. Rules whose type has no registered checker, or whose checker fails, are
// skipped.
func (s *ExtractionService) RunValidation(ctx context.Context, c access.Claims, documentID string, fields map[string]string) ([]extraction.Result, error) {
	if _, err := s.document(ctx, c, documentID); err != nil {
		return nil, err
	}
	rules, err := s.Store.ListRules(ctx, c.TenantID, true)
	if err != nil {
		return nil, err
	}

	pending := make([]*extraction.Result, 0, len(rules))
	for i := range rules {
		rule := &rules[i]
		outcome, err := s.checkers.Evaluate(ctx, rule, fields)
		if errors.Is(err, extraction.ErrNoChecker) {
			slog.WarnContext(ctx, "validation rule skipped", "rule", rule.RuleName, "rule_type", rule.RuleType)
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "validation rule failed to evaluate", "rule", rule.RuleName, "rule_type", rule.RuleType, "error", err)
			continue
		}
		pending = append(pending, &extraction.Result{
			DocumentID:     documentID,
			RuleID:         rule.ID,
			Passed:         outcome.Passed,
			Details:        outcomeDetails(ctx, rule, outcome.Details),
			AutoCorrected:  outcome.AutoCorrected,
			OriginalValue:  outcome.OriginalValue,
			CorrectedValue: outcome.CorrectedValue,
		})
	}

	if err := s.Store.CreateResults(ctx, pending); err != nil {
		return nil, err
	}
	out := make([]extraction.Result, 0, len(pending))
	for _, r := range pending {
		s.resultRecorded(ctx, c, r)
		out = append(out, *r)
	}
	return out, nil
}

// outcomeDetails encodes checker details. Values JSON cannot represent are replaced by
// an error object so the result still records why details are missing.
func outcomeDetails(ctx context.Context, rule *extraction.Rule, details map[string]any) json.RawMessage {
	if details == nil {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		slog.WarnContext(ctx, "validation details not encodable", "rule", rule.RuleName, "error", err)
		raw, _ = json.Marshal(map[string]string{"error": "details not encodable: " + err.Error()})
	}
	return raw
}

// ListResults returns the validation results recorded for a document.
func (s *ExtractionService) ListResults(ctx context.Context, c access.Claims, documentID string) ([]extraction.Result, error) {
	if _, err := s.document(ctx, c, documentID); err != nil {
		return nil, err
	}
	return s.Store.ListResults(ctx, documentID)
}

// ReviewQueue returns the tenant's documents needing human review, most urgent first.
func (s *ExtractionService) ReviewQueue(ctx context.Context, c access.Claims) ([]extraction.ReviewQueueEntry, error) {
	if !c.Valid() {
		return []extraction.ReviewQueueEntry{}, nil
	}
	ctx, span := cfotel.StartAnalyticsSpan(ctx, "review_queue", c.TenantID)
	defer span.End()

	candidates, err := s.Store.ListReviewCandidates(ctx, c.TenantID)
	if err != nil {
		return nil, err
	}
	q := extraction.BuildReviewQueue(candidates)
	s.Metrics.RecordQueueLength(ctx, c.TenantID, len(q))
	return q, nil
}

// CreateExample adds a few-shot example to the tenant's catalog.
func (s *ExtractionService) CreateExample(ctx context.Context, c access.Claims, req extraction.CreateExampleRequest) (*extraction.Example, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireTenant(ctx, c.TenantID); err != nil {
		return nil, err
	}
	e := &extraction.Example{
		TenantID:            c.TenantID,
		ExampleName:         req.ExampleName,
		DocumentCategory:    req.DocumentCategory,
		Difficulty:          req.Difficulty,
		DocumentDescription: req.DocumentDescription,
		DocumentSnippet:     req.DocumentSnippet,
		ExpectedExtraction:  req.ExpectedExtraction,
		IsActive:            true,
		Priority:            *req.Priority,
	}
	if err := s.Store.CreateExample(ctx, e); err != nil {
		return nil, err
	}
	s.audit(ctx, c, audit.ActionCreate, "extraction_example", e.ID, nil)
	return e, nil
}

// ListExamples returns the tenant's examples, highest priority first.
func (s *ExtractionService) ListExamples(ctx context.Context, c access.Claims, f extraction.ExampleFilter) ([]extraction.Example, error) {
	if !c.Valid() {
		return []extraction.Example{}, nil
	}
	return s.Store.ListExamples(ctx, c.TenantID, f)
}

// RecordExampleUsage counts one use of an example and folds success into its rate.
func (s *ExtractionService) RecordExampleUsage(ctx context.Context, c access.Claims, id string, success bool) (*extraction.Example, error) {
	e, err := s.Store.GetExample(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.TenantID != c.TenantID {
		return nil, fmt.Errorf("example %s: %w", id, domain.ErrNotFound)
	}
	return s.Store.RecordExampleUsage(ctx, id, func(cur extraction.Example) extraction.Example {
		return cur.RecordUsage(success)
	})
}

// CreateRule defines a validation rule for the tenant.
func (s *ExtractionService) CreateRule(ctx context.Context, c access.Claims, req extraction.CreateRuleRequest) (*extraction.Rule, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireTenant(ctx, c.TenantID); err != nil {
		return nil, err
	}
	r := &extraction.Rule{
		TenantID:        c.TenantID,
		RuleName:        req.RuleName,
		RuleType:        req.RuleType,
		EntityType:      req.EntityType,
		FieldToCheck:    req.FieldToCheck,
		ValidationQuery: req.ValidationQuery,
		OnFailure:       req.OnFailure,
		Severity:        req.Severity,
		IsActive:        true,
	}
	if err := s.Store.CreateRule(ctx, r); err != nil {
		return nil, err
	}
	s.audit(ctx, c, audit.ActionCreate, "validation_rule", r.ID, nil)
	return r, nil
}

// ListRules returns the tenant's rules.
func (s *ExtractionService) ListRules(ctx context.Context, c access.Claims, activeOnly bool) ([]extraction.Rule, error) {
	if !c.Valid() {
		return []extraction.Rule{}, nil
	}
	return s.Store.ListRules(ctx, c.TenantID, activeOnly)
}

func (s *ExtractionService) createResult(ctx context.Context, c access.Claims, r *extraction.Result) (*extraction.Result, error) {
	if err := s.Store.CreateResult(ctx, r); err != nil {
		return nil, err
	}
	s.resultRecorded(ctx, c, r)
	return r, nil
}

// resultRecorded counts and announces a stored result.
func (s *ExtractionService) resultRecorded(ctx context.Context, c access.Claims, r *extraction.Result) {
	s.Metrics.Count(ctx, cfotel.ValidationResults, c.TenantID, 1)
	s.Events.Publish(ctx, messagequeue.SubjectExtractionValidation, c.TenantID, messagequeue.ExtractionValidationPayload{
		Audience:   messagequeue.Audience{TenantID: c.TenantID},
		DocumentID: r.DocumentID,
		RuleID:     r.RuleID,
		Passed:     r.Passed,
	})
}

// document loads a document the caller's tenant owns. Documents of other tenants are
// rejected as a write outside the caller's entitlement.
func (s *ExtractionService) document(ctx context.Context, c access.Claims, id string) (*extraction.Document, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	d, err := s.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.TenantID != c.TenantID {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrForbidden)
	}
	return d, nil
}

func (s *ExtractionService) rule(ctx context.Context, c access.Claims, id string) (*extraction.Rule, error) {
	r, err := s.Store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.TenantID != c.TenantID {
		return nil, fmt.Errorf("validation rule %s: %w", id, domain.ErrForbidden)
	}
	return r, nil
}
