package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/flourisha/brain/internal/domain/extraction"
)

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// --- Documents ---

const documentColumns = `id, tenant_id, docname, doccategory, review_status, summary, created_at`

func scanDocument(row scannable, extra ...any) (extraction.Document, error) {
	var d extraction.Document
	dest := append([]any{&d.ID, &d.TenantID, &d.DocName, &d.DocCategory, &d.ReviewStatus, &d.Summary, &d.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return d, err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*extraction.Document, error) {
	d, err := scanDocument(s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get document %s", id)
	}
	return &d, nil
}

func (s *Store) ListReviewCandidates(ctx context.Context, tenantID string) ([]extraction.ReviewCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.tenant_id, d.docname, d.doccategory, d.review_status, d.summary, d.created_at,
			(SELECT count(*) FROM validation_results vr WHERE vr.document_id = d.id AND NOT vr.passed),
			(SELECT count(*) FROM extraction_feedback f WHERE f.document_id = d.id AND NOT f.used_for_training)
		 FROM documents d
		 WHERE d.tenant_id = $1
		 ORDER BY d.created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapErr(err, "list review candidates")
	}
	defer rows.Close()

	var out []extraction.ReviewCandidate
	for rows.Next() {
		var c extraction.ReviewCandidate
		d, err := scanDocument(rows, &c.FailedValidations, &c.PendingFeedback)
		if err != nil {
			return nil, fmt.Errorf("scan review candidate: %w", err)
		}
		c.Document = d
		out = append(out, c)
	}
	return orEmpty(out), rows.Err()
}

// --- Feedback ---

func (s *Store) CreateFeedback(ctx context.Context, f *extraction.Feedback) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO extraction_feedback (tenant_id, document_id, field_name, extracted_value, corrected_value,
			correction_type, correction_notes, document_context, reviewed_by, reviewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, used_for_training, created_at`,
		f.TenantID, f.DocumentID, f.FieldName, nullJSON(f.ExtractedValue), nullJSON(f.CorrectedValue),
		f.CorrectionType, f.CorrectionNotes, f.DocumentContext, f.ReviewedBy, f.ReviewedAt,
	).Scan(&f.ID, &f.UsedForTraining, &f.CreatedAt)
	if err != nil {
		return wrapErr(err, "create extraction feedback")
	}
	return nil
}

func (s *Store) ListFeedback(ctx context.Context, tenantID, documentID string) ([]extraction.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, document_id, field_name, extracted_value, corrected_value, correction_type,
			correction_notes, document_context, reviewed_by, reviewed_at, used_for_training, created_at
		 FROM extraction_feedback
		 WHERE tenant_id = $1 AND document_id = $2
		 ORDER BY created_at ASC`, tenantID, documentID)
	if err != nil {
		return nil, wrapErr(err, "list extraction feedback")
	}
	defer rows.Close()

	var out []extraction.Feedback
	for rows.Next() {
		var f extraction.Feedback
		var extracted, corrected []byte
		if err := rows.Scan(&f.ID, &f.TenantID, &f.DocumentID, &f.FieldName, &extracted, &corrected,
			&f.CorrectionType, &f.CorrectionNotes, &f.DocumentContext, &f.ReviewedBy, &f.ReviewedAt,
			&f.UsedForTraining, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction feedback: %w", err)
		}
		f.ExtractedValue = extracted
		f.CorrectedValue = corrected
		out = append(out, f)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) MarkFeedbackForTraining(ctx context.Context, tenantID string, ids []string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_feedback SET used_for_training = TRUE
		 WHERE tenant_id = $1 AND id = ANY($2) AND NOT used_for_training`, tenantID, ids)
	if err != nil {
		return 0, wrapErr(err, "mark feedback for training")
	}
	return tag.RowsAffected(), nil
}

// --- Examples ---

const exampleColumns = `id, tenant_id, example_name, document_category, difficulty, document_description,
	document_snippet, expected_extraction, times_used, success_rate, is_active, priority, created_at, updated_at`

func scanExample(row scannable) (extraction.Example, error) {
	var e extraction.Example
	var expected []byte
	err := row.Scan(&e.ID, &e.TenantID, &e.ExampleName, &e.DocumentCategory, &e.Difficulty,
		&e.DocumentDescription, &e.DocumentSnippet, &expected, &e.TimesUsed, &e.SuccessRate,
		&e.IsActive, &e.Priority, &e.CreatedAt, &e.UpdatedAt)
	e.ExpectedExtraction = expected
	return e, err
}

func (s *Store) CreateExample(ctx context.Context, e *extraction.Example) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO extraction_examples (tenant_id, example_name, document_category, difficulty,
			document_description, document_snippet, expected_extraction, is_active, priority)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, times_used, created_at, updated_at`,
		e.TenantID, e.ExampleName, e.DocumentCategory, e.Difficulty,
		e.DocumentDescription, e.DocumentSnippet, nullJSON(e.ExpectedExtraction), e.IsActive, e.Priority,
	).Scan(&e.ID, &e.TimesUsed, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create extraction example")
	}
	return nil
}

func (s *Store) GetExample(ctx context.Context, id string) (*extraction.Example, error) {
	e, err := scanExample(s.pool.QueryRow(ctx, `SELECT `+exampleColumns+` FROM extraction_examples WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get extraction example %s", id)
	}
	return &e, nil
}

func (s *Store) ListExamples(ctx context.Context, tenantID string, f extraction.ExampleFilter) ([]extraction.Example, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + exampleColumns + ` FROM extraction_examples WHERE tenant_id = $1`)
	args := []any{tenantID}
	if f.Category != "" {
		args = append(args, f.Category)
		sb.WriteString(" AND document_category = $" + strconv.Itoa(len(args)))
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		sb.WriteString(" AND difficulty = $" + strconv.Itoa(len(args)))
	}
	if f.ActiveOnly {
		sb.WriteString(" AND is_active")
	}
	sb.WriteString(" ORDER BY priority DESC, example_name ASC")

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapErr(err, "list extraction examples")
	}
	defer rows.Close()

	var out []extraction.Example
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extraction example: %w", err)
		}
		out = append(out, e)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) RecordExampleUsage(ctx context.Context, id string, fn func(extraction.Example) extraction.Example) (*extraction.Example, error) {
	var updated extraction.Example
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanExample(tx.QueryRow(ctx,
			`SELECT `+exampleColumns+` FROM extraction_examples WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFoundWrap(err, "lock extraction example %s", id)
		}
		next := fn(cur)
		err = tx.QueryRow(ctx,
			`UPDATE extraction_examples SET times_used = $2, success_rate = $3, updated_at = now()
			 WHERE id = $1 RETURNING updated_at`,
			id, next.TimesUsed, next.SuccessRate,
		).Scan(&next.UpdatedAt)
		if err != nil {
			return wrapErr(err, "update extraction example %s", id)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// --- Rules ---

const ruleColumns = `id, tenant_id, rule_name, rule_type, entity_type, field_to_check, validation_query,
	on_failure, severity, is_active, created_at`

func scanRule(row scannable) (extraction.Rule, error) {
	var r extraction.Rule
	err := row.Scan(&r.ID, &r.TenantID, &r.RuleName, &r.RuleType, &r.EntityType, &r.FieldToCheck,
		&r.ValidationQuery, &r.OnFailure, &r.Severity, &r.IsActive, &r.CreatedAt)
	return r, err
}

func (s *Store) CreateRule(ctx context.Context, r *extraction.Rule) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO validation_rules (tenant_id, rule_name, rule_type, entity_type, field_to_check,
			validation_query, on_failure, severity, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		r.TenantID, r.RuleName, r.RuleType, r.EntityType, r.FieldToCheck,
		r.ValidationQuery, r.OnFailure, r.Severity, r.IsActive,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return wrapErr(err, "create validation rule")
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*extraction.Rule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM validation_rules WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get validation rule %s", id)
	}
	return &r, nil
}

func (s *Store) ListRules(ctx context.Context, tenantID string, activeOnly bool) ([]extraction.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM validation_rules WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY rule_name`, tenantID)
	if err != nil {
		return nil, wrapErr(err, "list validation rules")
	}
	defer rows.Close()

	var out []extraction.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan validation rule: %w", err)
		}
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}

// --- Results ---

func (s *Store) CreateResult(ctx context.Context, r *extraction.Result) error {
	return insertResult(ctx, s.pool, r)
}

// CreateResults inserts every result in one transaction; on error none are stored.
func (s *Store) CreateResults(ctx context.Context, rs []*extraction.Result) error {
	if len(rs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, r := range rs {
			if err := insertResult(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertResult(ctx context.Context, q rowQuerier, r *extraction.Result) error {
	err := q.QueryRow(ctx,
		`INSERT INTO validation_results (document_id, rule_id, passed, details, auto_corrected, original_value, corrected_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		r.DocumentID, r.RuleID, r.Passed, nullJSON(r.Details), r.AutoCorrected, r.OriginalValue, r.CorrectedValue,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return wrapErr(err, "create validation result")
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context, documentID string) ([]extraction.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, rule_id, passed, details, auto_corrected, original_value, corrected_value, created_at
		 FROM validation_results WHERE document_id = $1 ORDER BY created_at ASC`, documentID)
	if err != nil {
		return nil, wrapErr(err, "list validation results")
	}
	defer rows.Close()

	var out []extraction.Result
	for rows.Next() {
		var r extraction.Result
		var details []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.RuleID, &r.Passed, &details, &r.AutoCorrected,
			&r.OriginalValue, &r.CorrectedValue, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation result: %w", err)
		}
		r.Details = details
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}
