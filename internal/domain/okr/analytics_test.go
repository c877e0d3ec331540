package okr_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flourisha/brain/internal/domain/okr"
)

func kr(tenant, objective string, current, target float64, status okr.Status) okr.KeyResult {
	return okr.KeyResult{
		Key:            okr.Key{TenantID: tenant, Quarter: "Q1_2026", ObjectiveID: objective, KeyResultID: objective + "-" + string(status)},
		ObjectiveTitle: "Objective " + objective,
		Current:        current,
		Target:         target,
		Status:         status,
	}
}

func TestCalculateObjectiveProgress(t *testing.T) {
	rows := []okr.KeyResult{
		kr("t1", "OBJ-002", 1, 1, okr.StatusCompleted),
		kr("t1", "OBJ-001", 10, 10, okr.StatusCompleted),
		kr("t1", "OBJ-001", 0, 10, okr.StatusNotStarted),
		kr("t1", "OBJ-001", 0, 0, okr.StatusInProgress),
	}
	got := okr.CalculateObjectiveProgress(rows)
	want := []okr.ObjectiveProgress{
		{
			TenantID: "t1", Quarter: "Q1_2026", ObjectiveID: "OBJ-001", ObjectiveTitle: "Objective OBJ-001",
			TotalKeyResults: 3, CompletedKeyResults: 1, OverallProgressPct: 33.33,
			StatusCounts: map[okr.Status]int{okr.StatusCompleted: 1, okr.StatusNotStarted: 1, okr.StatusInProgress: 1},
		},
		{
			TenantID: "t1", Quarter: "Q1_2026", ObjectiveID: "OBJ-002", ObjectiveTitle: "Objective OBJ-002",
			TotalKeyResults: 1, CompletedKeyResults: 1, OverallProgressPct: 100,
			StatusCounts: map[okr.Status]int{okr.StatusCompleted: 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("progress (-want +got):\n%s", diff)
	}
	if got := okr.CalculateObjectiveProgress(nil); len(got) != 0 {
		t.Errorf("empty input: %v", got)
	}
}

func TestFindAtRisk(t *testing.T) {
	today := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := func(days int) *time.Time {
		d := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
		return &d
	}
	withDue := func(k okr.KeyResult, d *time.Time) okr.KeyResult {
		k.TargetCompletionDate = d
		return k
	}

	rows := []okr.KeyResult{
		withDue(kr("t1", "A", 65, 100, okr.StatusInProgress), due(10)),
		withDue(kr("t1", "B", 20, 100, okr.StatusAtRisk), due(10)),
		withDue(kr("t1", "C", 10, 100, okr.StatusNotStarted), due(-3)),
		withDue(kr("t1", "D", 75, 100, okr.StatusInProgress), due(5)),
		withDue(kr("t1", "E", 10, 100, okr.StatusCompleted), due(5)),
		withDue(kr("t1", "F", 10, 100, okr.StatusPaused), due(5)),
		withDue(kr("t1", "G", 10, 100, okr.StatusInProgress), due(40)),
		kr("t1", "H", 10, 100, okr.StatusInProgress),
	}

	got := okr.FindAtRisk(rows, today, 30)
	type row struct {
		Objective     string
		ProgressPct   float64
		DaysRemaining int
	}
	var gotRows []row
	for _, r := range got {
		gotRows = append(gotRows, row{r.ObjectiveID, r.ProgressPct, r.DaysRemaining})
	}
	want := []row{
		{"C", 10, -3},
		{"B", 20, 10},
		{"A", 65, 10},
	}
	if diff := cmp.Diff(want, gotRows); diff != "" {
		t.Errorf("at risk (-want +got):\n%s", diff)
	}

	if got := okr.FindAtRisk(rows, today, 5); len(got) != 1 || got[0].ObjectiveID != "C" {
		t.Errorf("5-day window: %+v", got)
	}
}

func TestOverview(t *testing.T) {
	personal := kr("t1", "P", 50, 100, okr.StatusAtRisk)
	personal.Visibility = okr.VisibilityPersonal
	personal.UserID = "alice"

	work1 := kr("t2", "W", 100, 100, okr.StatusCompleted)
	work1.UserID = "alice"
	work2 := kr("t2", "W", 0, 100, okr.StatusNotStarted)
	work2.UserID = "alice"
	work2.KeyResultID = "W-2"

	other := kr("t2", "X", 10, 100, okr.StatusInProgress)
	other.UserID = "bob"

	nextQuarter := kr("t1", "Q", 10, 100, okr.StatusInProgress)
	nextQuarter.UserID = "alice"
	nextQuarter.Quarter = "Q2_2026"

	got := okr.Overview([]okr.KeyResult{work1, other, personal, work2, nextQuarter}, "alice", "Q1_2026")
	want := []okr.ContextOverview{
		{Context: okr.ContextLabelPersonal, ObjectiveCount: 1, KeyResultCount: 1, AvgProgressPct: 50, AtRiskCount: 1},
		{Context: "t2", ObjectiveCount: 1, KeyResultCount: 2, AvgProgressPct: 50},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overview (-want +got):\n%s", diff)
	}
}

func TestContextLabel(t *testing.T) {
	tests := []struct {
		kr   okr.KeyResult
		want string
	}{
		{okr.KeyResult{Visibility: okr.VisibilityPersonal, Key: okr.Key{TenantID: "t1"}}, okr.ContextLabelPersonal},
		{okr.KeyResult{Visibility: okr.VisibilityWorkspace, Key: okr.Key{TenantID: "t1"}}, "t1"},
		{okr.KeyResult{}, okr.ContextLabelUnknown},
	}
	for _, tt := range tests {
		if got := okr.ContextLabel(&tt.kr); got != tt.want {
			t.Errorf("ContextLabel(%+v) = %q, want %q", tt.kr, got, tt.want)
		}
	}
}

func TestCreateTagRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       okr.CreateTagRequest
		wantErr   bool
		wantColor string
	}{
		{"personal default color", okr.CreateTagRequest{TagScope: okr.TagScope{UserID: "alice"}, Name: " focus "}, false, okr.DefaultTagColor},
		{"workspace custom color", okr.CreateTagRequest{TagScope: okr.TagScope{WorkspaceID: "t1"}, Name: "q1", Color: "#aabbcc"}, false, "#aabbcc"},
		{"both owners", okr.CreateTagRequest{TagScope: okr.TagScope{UserID: "alice", WorkspaceID: "t1"}, Name: "x"}, true, ""},
		{"no owner", okr.CreateTagRequest{Name: "x"}, true, ""},
		{"blank name", okr.CreateTagRequest{TagScope: okr.TagScope{UserID: "alice"}, Name: "  "}, true, ""},
		{"bad color", okr.CreateTagRequest{TagScope: okr.TagScope{UserID: "alice"}, Name: "x", Color: "red"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && req.Color != tt.wantColor {
				t.Errorf("color = %q, want %q", req.Color, tt.wantColor)
			}
		})
	}
}
