package okr

import (
	"sort"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// AtRiskProgressThreshold is the progress percentage below which a key result nearing its
// deadline is considered at risk.
const AtRiskProgressThreshold = 70.0

// DefaultAtRiskDays is the default deadline window for FindAtRisk.
const DefaultAtRiskDays = 30

// ObjectiveProgress summarizes the key results of one objective.
type ObjectiveProgress struct {
	TenantID            string         `json:"tenant_id"`
	Quarter             string         `json:"quarter"`
	ObjectiveID         string         `json:"objective_id"`
	ObjectiveTitle      string         `json:"objective_title"`
	TotalKeyResults     int            `json:"total_key_results"`
	CompletedKeyResults int            `json:"completed_key_results"`
	OverallProgressPct  float64        `json:"overall_progress_pct"`
	StatusCounts        map[Status]int `json:"status_counts"`
}

type objectiveKey struct{ tenant, quarter, objective string }

// CalculateObjectiveProgress groups rows by (tenant, quarter, objective_id) and returns one
// summary per objective, ordered by tenant, quarter and objective id. Overall progress is
// the simple mean of each key result's ProgressPercent, rounded to 2 decimals.
func CalculateObjectiveProgress(rows []KeyResult) []ObjectiveProgress {
	groups := make(map[objectiveKey]*ObjectiveProgress)
	sums := make(map[objectiveKey]float64)
	var order []objectiveKey

	for i := range rows {
		kr := &rows[i]
		k := objectiveKey{kr.TenantID, kr.Quarter, kr.ObjectiveID}
		g, ok := groups[k]
		if !ok {
			g = &ObjectiveProgress{
				TenantID:       kr.TenantID,
				Quarter:        kr.Quarter,
				ObjectiveID:    kr.ObjectiveID,
				ObjectiveTitle: kr.ObjectiveTitle,
				StatusCounts:   make(map[Status]int),
			}
			groups[k] = g
			order = append(order, k)
		}
		g.TotalKeyResults++
		if kr.Status == StatusCompleted {
			g.CompletedKeyResults++
		}
		g.StatusCounts[kr.Status]++
		sums[k] += kr.ProgressPercent()
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.tenant != b.tenant {
			return a.tenant < b.tenant
		}
		if a.quarter != b.quarter {
			return a.quarter < b.quarter
		}
		return a.objective < b.objective
	})

	out := make([]ObjectiveProgress, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.OverallProgressPct = domain.Round2(sums[k] / float64(g.TotalKeyResults))
		out = append(out, *g)
	}
	return out
}

// AtRiskKeyResult is a key result flagged by FindAtRisk.
type AtRiskKeyResult struct {
	KeyResult
	ProgressPct   float64 `json:"progress_pct"`
	DaysRemaining int     `json:"days_remaining"`
}

// FindAtRisk returns the key results whose target completion date is set and falls on or
// before now+daysThreshold (overdue dates included), whose status is neither completed nor
// paused, and whose progress is below AtRiskProgressThreshold. Results are ordered by
// target date ascending, then progress ascending.
func FindAtRisk(rows []KeyResult, now time.Time, daysThreshold int) []AtRiskKeyResult {
	today := truncateDay(now)
	horizon := today.AddDate(0, 0, daysThreshold)

	var out []AtRiskKeyResult
	for i := range rows {
		kr := rows[i]
		if kr.TargetCompletionDate == nil {
			continue
		}
		if kr.Status == StatusCompleted || kr.Status == StatusPaused {
			continue
		}
		due := truncateDay(*kr.TargetCompletionDate)
		if due.After(horizon) {
			continue
		}
		pct := kr.ProgressPercent()
		if pct >= AtRiskProgressThreshold {
			continue
		}
		out = append(out, AtRiskKeyResult{
			KeyResult:     kr,
			ProgressPct:   domain.Round2(pct),
			DaysRemaining: int(due.Sub(today).Hours() / 24),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := *out[i].TargetCompletionDate, *out[j].TargetCompletionDate
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return out[i].ProgressPct < out[j].ProgressPct
	})
	return out
}

// ContextLabelPersonal labels the overview group of personal key results.
const ContextLabelPersonal = "Personal"

// ContextLabelUnknown labels non-personal key results without a tenant.
const ContextLabelUnknown = "Unknown"

// ContextOverview summarizes a user's key results within one context.
type ContextOverview struct {
	Context        string  `json:"context"`
	ObjectiveCount int     `json:"objective_count"`
	KeyResultCount int     `json:"key_result_count"`
	AvgProgressPct float64 `json:"avg_progress_pct"`
	AtRiskCount    int     `json:"at_risk_count"`
}

// ContextLabel returns the overview context a key result belongs to.
func ContextLabel(kr *KeyResult) string {
	if kr.Visibility == VisibilityPersonal {
		return ContextLabelPersonal
	}
	if kr.TenantID != "" {
		return kr.TenantID
	}
	return ContextLabelUnknown
}

// Overview groups the rows owned by userID (and in quarter, when non-empty) by context
// label. Objectives are counted distinctly per (tenant, quarter, objective_id). The
// Personal context sorts first; the rest sort by label.
func Overview(rows []KeyResult, userID, quarter string) []ContextOverview {
	type acc struct {
		ContextOverview
		objectives map[objectiveKey]struct{}
		sum        float64
	}
	groups := make(map[string]*acc)

	for i := range rows {
		kr := &rows[i]
		if kr.UserID != userID {
			continue
		}
		if quarter != "" && kr.Quarter != quarter {
			continue
		}
		label := ContextLabel(kr)
		g, ok := groups[label]
		if !ok {
			g = &acc{
				ContextOverview: ContextOverview{Context: label},
				objectives:      make(map[objectiveKey]struct{}),
			}
			groups[label] = g
		}
		g.objectives[objectiveKey{kr.TenantID, kr.Quarter, kr.ObjectiveID}] = struct{}{}
		g.KeyResultCount++
		g.sum += kr.ProgressPercent()
		if kr.Status == StatusAtRisk {
			g.AtRiskCount++
		}
	}

	out := make([]ContextOverview, 0, len(groups))
	for _, g := range groups {
		g.ObjectiveCount = len(g.objectives)
		g.AvgProgressPct = domain.Round2(g.sum / float64(g.KeyResultCount))
		out = append(out, g.ContextOverview)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Context == ContextLabelPersonal) != (out[j].Context == ContextLabelPersonal) {
			return out[i].Context == ContextLabelPersonal
		}
		return out[i].Context < out[j].Context
	})
	return out
}
