package http

import (
	"net/http"
	"time"
)

// ListEnergyReadings handles GET /api/v1/energy/readings?user_id&start&end. The window
// defaults to the last 24 hours and the user to the caller.
func (h *Handlers) ListEnergyReadings(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	userID, start, end, err := h.energyWindow(r, c.Subject, 24*time.Hour)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	readings, err := h.Energy.List(r.Context(), c, userID, start, end)
	if err != nil {
		writeDomainError(w, r, err, "readings not found")
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// EnergySummary handles GET /api/v1/energy/summary?user_id&start&end. The window defaults
// to the last 7 days.
func (h *Handlers) EnergySummary(w http.ResponseWriter, r *http.Request) {
	c, ok := requireClaims(w, r)
	if !ok {
		return
	}
	userID, start, end, err := h.energyWindow(r, c.Subject, 7*24*time.Hour)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	summary, err := h.Energy.AverageForPeriod(r.Context(), c, userID, start, end)
	if err != nil {
		writeDomainError(w, r, err, "readings not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) energyWindow(r *http.Request, defaultUser string, span time.Duration) (userID string, start, end time.Time, err error) {
	userID = r.URL.Query().Get("user_id")
	if userID == "" {
		userID = defaultUser
	}
	if end, err = queryTime(r, "end", h.now()); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if start, err = queryTime(r, "start", end.Add(-span)); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return userID, start, end, nil
}
