package http

import (
	"net/http"

	"github.com/flourisha/brain/internal/domain/okr"
)

type upsertResponse struct {
	KeyResult *okr.KeyResult    `json:"key_result"`
	History   *okr.HistoryEntry `json:"history_entry,omitempty"`
}

type assignResponse struct {
	OKRID    string `json:"okr_id"`
	TagID    string `json:"tag_id"`
	Assigned bool   `json:"assigned"`
}

// UpsertKeyResult handles PUT /api/v1/okrs/key-results.
func (h *Handlers) UpsertKeyResult(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[okr.UpsertRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	kr, entry, err := h.OKRs.Upsert(r.Context(), c, req)
	if err != nil {
		writeDomainError(w, r, err, "key result not found")
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{KeyResult: kr, History: entry})
}

// ListKeyResults handles GET /api/v1/okrs/key-results?quarter&objective_id&user_id&status.
func (h *Handlers) ListKeyResults(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rows, err := h.OKRs.List(r.Context(), c, okr.Filter{
		TenantID:    q.Get("tenant_id"),
		Quarter:     q.Get("quarter"),
		ObjectiveID: q.Get("objective_id"),
		UserID:      q.Get("user_id"),
		Status:      okr.Status(q.Get("status")),
	})
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ObjectiveProgress handles GET /api/v1/okrs/progress?quarter&objective_id.
func (h *Handlers) ObjectiveProgress(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	progress, err := h.OKRs.ObjectiveProgress(r.Context(), c, q.Get("quarter"), q.Get("objective_id"))
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// AtRiskKeyResults handles GET /api/v1/okrs/at-risk?quarter&days.
func (h *Handlers) AtRiskKeyResults(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	days, err := queryOptionalInt(r, "days")
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	rows, err := h.OKRs.AtRisk(r.Context(), c, r.URL.Query().Get("quarter"), days)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// OKROverview handles GET /api/v1/okrs/overview?quarter.
func (h *Handlers) OKROverview(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	overview, err := h.OKRs.Overview(r.Context(), c, r.URL.Query().Get("quarter"))
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// ListTags handles GET /api/v1/okrs/tags?user_id&workspace_id.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	tags, err := h.Tags.List(r.Context(), c, okr.TagScope{UserID: q.Get("user_id"), WorkspaceID: q.Get("workspace_id")})
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// AssignTag handles PUT /api/v1/okrs/key-results/{id}/tags/{tagID}. A new link answers
// 201, an existing one 200.
func (h *Handlers) AssignTag(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	okrID, tagID := urlParam(r, "id"), urlParam(r, "tagID")
	inserted, err := h.Tags.Assign(r.Context(), c, okrID, tagID)
	if err != nil {
		writeDomainError(w, r, err, "key result or tag not found")
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, assignResponse{OKRID: okrID, TagID: tagID, Assigned: inserted})
}

// UnassignTag handles DELETE /api/v1/okrs/key-results/{id}/tags/{tagID}.
func (h *Handlers) UnassignTag(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if err := h.Tags.Unassign(r.Context(), c, urlParam(r, "id"), urlParam(r, "tagID")); err != nil {
		writeDomainError(w, r, err, "tag assignment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
