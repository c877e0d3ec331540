package okr_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/okr"
)

var now = time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func key() okr.Key {
	return okr.Key{TenantID: "t1", Quarter: "Q1_2026", ObjectiveID: "OBJ-001", KeyResultID: "KR-1"}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name            string
		current, target float64
		want            float64
	}{
		{"half", 5, 10, 50},
		{"capped", 15, 10, 100},
		{"zero target", 5, 0, 0},
		{"negative target", 5, -1, 0},
		{"nothing yet", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := okr.ProgressPercent(tt.current, tt.target); got != tt.want {
				t.Errorf("ProgressPercent(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestKeyValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*okr.Key)
	}{
		{"no tenant", func(k *okr.Key) { k.TenantID = "" }},
		{"no quarter", func(k *okr.Key) { k.Quarter = "" }},
		{"no objective", func(k *okr.Key) { k.ObjectiveID = "" }},
		{"no key result", func(k *okr.Key) { k.KeyResultID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := key()
			tt.tweak(&k)
			if err := k.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	if err := key().Validate(); err != nil {
		t.Errorf("complete key: %v", err)
	}
}

func TestMergeCreate(t *testing.T) {
	due := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	req := &okr.UpsertRequest{
		Key:                  key(),
		ObjectiveTitle:       "Grow revenue",
		KeyResultTitle:       "Sign 10 customers",
		Target:               ptr(10.0),
		TargetCompletionDate: &due,
	}
	got, err := okr.Merge(nil, req, now)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	day := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	want := okr.KeyResult{
		Key:                  key(),
		ObjectiveTitle:       "Grow revenue",
		KeyResultTitle:       "Sign 10 customers",
		Target:               10,
		Status:               okr.StatusNotStarted,
		TargetCompletionDate: &day,
		LastUpdated:          now,
		CreatedAt:            now,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge (-want +got):\n%s", diff)
	}
}

func TestMergeUpdateKeepsUnsetFields(t *testing.T) {
	created := now.Add(-48 * time.Hour)
	prev := &okr.KeyResult{
		ID:             "kr-1",
		Key:            key(),
		ObjectiveTitle: "Grow revenue",
		KeyResultTitle: "Sign 10 customers",
		Owner:          "alice",
		Target:         10,
		Current:        2,
		Status:         okr.StatusInProgress,
		CreatedAt:      created,
	}
	got, err := okr.Merge(prev, &okr.UpsertRequest{Key: key(), Current: ptr(6.0)}, now)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	want := *prev
	want.Current = 6
	want.LastUpdated = now
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge (-want +got):\n%s", diff)
	}
}

func TestMergeRejects(t *testing.T) {
	tests := []struct {
		name string
		prev *okr.KeyResult
		req  okr.UpsertRequest
	}{
		{"create without target", nil, okr.UpsertRequest{Key: key(), ObjectiveTitle: "o", KeyResultTitle: "k"}},
		{"create without titles", nil, okr.UpsertRequest{Key: key(), Target: ptr(1.0)}},
		{"bad status", nil, okr.UpsertRequest{Key: key(), ObjectiveTitle: "o", KeyResultTitle: "k", Target: ptr(1.0), Status: ptr(okr.Status("done"))}},
		{"bad visibility", nil, okr.UpsertRequest{Key: key(), ObjectiveTitle: "o", KeyResultTitle: "k", Target: ptr(1.0), Visibility: ptr(okr.Visibility("public"))}},
		{"personal without user", nil, okr.UpsertRequest{Key: key(), ObjectiveTitle: "o", KeyResultTitle: "k", Target: ptr(1.0), Visibility: ptr(okr.VisibilityPersonal)}},
		{"incomplete key", nil, okr.UpsertRequest{Key: okr.Key{TenantID: "t1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if _, err := okr.Merge(tt.prev, &req, now); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	base := okr.KeyResult{ID: "kr-1", Target: 10, Current: 4, Status: okr.StatusInProgress}
	with := func(f func(*okr.KeyResult)) *okr.KeyResult {
		k := base
		f(&k)
		return &k
	}

	tests := []struct {
		name     string
		prev     *okr.KeyResult
		next     *okr.KeyResult
		notes    string
		want     okr.ChangeType
		wantNote string
		wantPrev *float64
	}{
		{"created", nil, &base, "", okr.ChangeProgressUpdate, "", nil},
		{"progress", &base, with(func(k *okr.KeyResult) { k.Current = 6 }), "weekly sync", okr.ChangeProgressUpdate, "weekly sync", ptr(4.0)},
		{"progress wins over status", &base, with(func(k *okr.KeyResult) { k.Current = 10; k.Status = okr.StatusCompleted }), "", okr.ChangeProgressUpdate, "", ptr(4.0)},
		{"status", &base, with(func(k *okr.KeyResult) { k.Status = okr.StatusAtRisk }), "", okr.ChangeStatusChange, "status in_progress -> at_risk", ptr(4.0)},
		{"target", &base, with(func(k *okr.KeyResult) { k.Target = 12 }), "", okr.ChangeTargetChange, "target 10 -> 12", ptr(4.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := okr.Diff(tt.prev, tt.next, "alice", tt.notes, now)
			if got == nil {
				t.Fatal("expected a history entry")
			}
			want := &okr.HistoryEntry{
				OKRTrackingID: "kr-1",
				PreviousValue: tt.wantPrev,
				NewValue:      tt.next.Current,
				ChangeType:    tt.want,
				Notes:         tt.wantNote,
				RecordedBy:    "alice",
				RecordedAt:    now,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Diff (-want +got):\n%s", diff)
			}
		})
	}

	if got := okr.Diff(&base, with(func(k *okr.KeyResult) { k.Owner = "bob" }), "alice", "", now); got != nil {
		t.Errorf("untracked change should yield nil, got %+v", got)
	}
}

func TestFilterMatch(t *testing.T) {
	kr := &okr.KeyResult{Key: key(), UserID: "alice", Status: okr.StatusAtRisk}
	tests := []struct {
		name string
		f    okr.Filter
		want bool
	}{
		{"empty", okr.Filter{}, true},
		{"all set", okr.Filter{TenantID: "t1", Quarter: "Q1_2026", ObjectiveID: "OBJ-001", UserID: "alice", Status: okr.StatusAtRisk}, true},
		{"other quarter", okr.Filter{Quarter: "Q2_2026"}, false},
		{"other user", okr.Filter{UserID: "bob"}, false},
		{"other status", okr.Filter{Status: okr.StatusCompleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Match(kr); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
