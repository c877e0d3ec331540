package http

import (
	"net/http"

	"github.com/flourisha/brain/internal/domain/extraction"
)

type trainingRequest struct {
	IDs []string `json:"ids"`
}

type validateRequest struct {
	Fields map[string]string `json:"fields"`
}

type usageRequest struct {
	Success bool `json:"success"`
}

// MarkFeedbackForTraining handles POST /api/v1/extraction/feedback/training.
func (h *Handlers) MarkFeedbackForTraining(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[trainingRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	n, err := h.Extraction.MarkForTraining(r.Context(), c, req.IDs)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// RunValidation handles POST /api/v1/extraction/documents/{id}/validate.
func (h *Handlers) RunValidation(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[validateRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	results, err := h.Extraction.RunValidation(r.Context(), c, urlParam(r, "id"), req.Fields)
	if err != nil {
		writeDomainError(w, r, err, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ReviewQueue handles GET /api/v1/extraction/review-queue.
func (h *Handlers) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	q, err := h.Extraction.ReviewQueue(r.Context(), c)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListExamples handles GET /api/v1/extraction/examples?category&difficulty&active_only.
func (h *Handlers) ListExamples(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	examples, err := h.Extraction.ListExamples(r.Context(), c, extraction.ExampleFilter{
		Category:   q.Get("category"),
		Difficulty: extraction.Difficulty(q.Get("difficulty")),
		ActiveOnly: queryBool(r, "active_only"),
	})
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, examples)
}

// RecordExampleUsage handles POST /api/v1/extraction/examples/{id}/usage.
func (h *Handlers) RecordExampleUsage(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[usageRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	e, err := h.Extraction.RecordExampleUsage(r.Context(), c, urlParam(r, "id"), req.Success)
	if err != nil {
		writeDomainError(w, r, err, "example not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListRules handles GET /api/v1/extraction/rules?active_only.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	rules, err := h.Extraction.ListRules(r.Context(), c, queryBool(r, "active_only"))
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}
