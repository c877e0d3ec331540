package extraction

import (
	"sort"
	"time"
)

// Human review statuses of the external document entity that put it in the queue.
const (
	ReviewStatusPending     = "pending"
	ReviewStatusNeedsReview = "needs_review"
)

// Document is the subset of the external document record the review queue reads.
type Document struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	DocName      string    `json:"docname"`
	DocCategory  string    `json:"doccategory"`
	ReviewStatus string    `json:"review_status"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReviewCandidate is a document with its failed-validation and pending-feedback counts.
type ReviewCandidate struct {
	Document
	FailedValidations int `json:"failed_validations"`
	PendingFeedback   int `json:"pending_feedback"`
}

// ReviewQueueEntry is a candidate admitted to the queue with its priority tier.
type ReviewQueueEntry struct {
	ReviewCandidate
	PriorityOrder int `json:"priority_order"`
}

// Priority returns 1 for pending documents, 2 for documents with failed validations,
// and 3 otherwise.
func (c *ReviewCandidate) Priority() int {
	switch {
	case c.ReviewStatus == ReviewStatusPending:
		return 1
	case c.FailedValidations > 0:
		return 2
	default:
		return 3
	}
}

// Queued reports whether the document belongs in the review queue: its review status is
// pending or needs_review, or at least one validation failed.
func (c *ReviewCandidate) Queued() bool {
	return c.ReviewStatus == ReviewStatusPending ||
		c.ReviewStatus == ReviewStatusNeedsReview ||
		c.FailedValidations > 0
}

// BuildReviewQueue admits the queued candidates and orders them by priority tier, then by
// creation time with the most recent first.
func BuildReviewQueue(candidates []ReviewCandidate) []ReviewQueueEntry {
	out := make([]ReviewQueueEntry, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if !c.Queued() {
			continue
		}
		out = append(out, ReviewQueueEntry{ReviewCandidate: c, PriorityOrder: c.Priority()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityOrder != out[j].PriorityOrder {
			return out[i].PriorityOrder < out[j].PriorityOrder
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
