package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	cfmcp "github.com/flourisha/brain/internal/adapter/mcp"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/domain/okr"
)

var fixedClaims = access.Claims{TenantID: "t1", Subject: "alice"}

// --- Mocks ---

type mockEnergy struct {
	gotClaims access.Claims
	gotUser   string
	gotStart  time.Time
	gotEnd    time.Time
	recorded  []energy.RecordRequest
	summary   energy.PeriodSummary
	err       error
}

func (m *mockEnergy) Record(_ context.Context, c access.Claims, req energy.RecordRequest) (*energy.Reading, error) {
	m.gotClaims = c
	m.recorded = append(m.recorded, req)
	if m.err != nil {
		return nil, m.err
	}
	return &energy.Reading{ID: "r1", EnergyLevel: req.EnergyLevel, FocusQuality: req.FocusQuality}, nil
}

func (m *mockEnergy) AverageForPeriod(_ context.Context, c access.Claims, userID string, start, end time.Time) (energy.PeriodSummary, error) {
	m.gotClaims, m.gotUser, m.gotStart, m.gotEnd = c, userID, start, end
	return m.summary, m.err
}

type mockOKRs struct {
	gotQuarter string
	gotDays    *int
	overview   []okr.ContextOverview
}

func (m *mockOKRs) ObjectiveProgress(_ context.Context, _ access.Claims, quarter, objectiveID string) ([]okr.ObjectiveProgress, error) {
	m.gotQuarter = quarter
	return []okr.ObjectiveProgress{{Quarter: quarter, ObjectiveID: objectiveID, OverallProgressPct: 33.33}}, nil
}

func (m *mockOKRs) AtRisk(_ context.Context, _ access.Claims, quarter string, days *int) ([]okr.AtRiskKeyResult, error) {
	m.gotQuarter, m.gotDays = quarter, days
	return []okr.AtRiskKeyResult{}, nil
}

func (m *mockOKRs) Overview(_ context.Context, _ access.Claims, quarter string) ([]okr.ContextOverview, error) {
	m.gotQuarter = quarter
	return m.overview, nil
}

type mockReview struct{}

func (mockReview) ReviewQueue(context.Context, access.Claims) ([]extraction.ReviewQueueEntry, error) {
	return []extraction.ReviewQueueEntry{{PriorityOrder: 1}}, nil
}

func newServer(deps cfmcp.ServerDeps) *cfmcp.Server {
	return cfmcp.NewServer(cfmcp.ServerConfig{Name: "test", Version: "0.1.0", Claims: fixedClaims}, deps)
}

func callTool(t *testing.T, s *cfmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func decodeText(t *testing.T, result *mcplib.CallToolResult, v any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
}

// --- Tests ---

func TestServerStartStop(t *testing.T) {
	s := cfmcp.NewServer(cfmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test", Version: "0.1.0"}, cfmcp.ServerDeps{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	tools := newServer(cfmcp.ServerDeps{}).MCPServer().ListTools()
	expected := []string{"energy_summary", "record_energy", "objective_progress", "at_risk_key_results", "okr_overview", "review_queue"}
	if len(tools) != len(expected) {
		t.Fatalf("expected %d tools, got %d", len(expected), len(tools))
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleEnergySummaryDefaults(t *testing.T) {
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	e := &mockEnergy{summary: energy.PeriodSummary{AvgEnergy: 6.5, TotalReadings: 4}}
	s := newServer(cfmcp.ServerDeps{Energy: e, Now: func() time.Time { return now }})

	var got energy.PeriodSummary
	decodeText(t, callTool(t, s, "energy_summary", nil), &got)
	if got.AvgEnergy != 6.5 || got.TotalReadings != 4 {
		t.Fatalf("unexpected summary %+v", got)
	}
	if e.gotClaims != fixedClaims || e.gotUser != "alice" {
		t.Fatalf("called with claims %+v user %q", e.gotClaims, e.gotUser)
	}
	if !e.gotEnd.Equal(now) || !e.gotStart.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("window = %v..%v", e.gotStart, e.gotEnd)
	}

	result := callTool(t, s, "energy_summary", map[string]any{"start": "yesterday"})
	if !result.IsError {
		t.Fatal("expected error result for an unparsable start")
	}
}

func TestHandleRecordEnergy(t *testing.T) {
	e := &mockEnergy{}
	s := newServer(cfmcp.ServerDeps{Energy: e})

	var got energy.Reading
	decodeText(t, callTool(t, s, "record_energy", map[string]any{"energy_level": 7.0, "focus_quality": "deep"}), &got)
	if got.EnergyLevel != 7 || got.FocusQuality != energy.FocusDeep {
		t.Fatalf("unexpected reading %+v", got)
	}

	if !callTool(t, s, "record_energy", map[string]any{"focus_quality": "deep"}).IsError {
		t.Fatal("expected error result for missing energy_level")
	}
	e.err = errors.New("boom")
	if !callTool(t, s, "record_energy", map[string]any{"energy_level": 3.0, "focus_quality": "deep"}).IsError {
		t.Fatal("expected error result when the service fails")
	}
}

func TestHandleOKRTools(t *testing.T) {
	o := &mockOKRs{}
	s := newServer(cfmcp.ServerDeps{OKRs: o})

	var progress []okr.ObjectiveProgress
	decodeText(t, callTool(t, s, "objective_progress", map[string]any{"quarter": "Q1_2026"}), &progress)
	if len(progress) != 1 || progress[0].OverallProgressPct != 33.33 || o.gotQuarter != "Q1_2026" {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if !callTool(t, s, "objective_progress", nil).IsError {
		t.Fatal("expected error result for missing quarter")
	}

	var atRisk []okr.AtRiskKeyResult
	decodeText(t, callTool(t, s, "at_risk_key_results", map[string]any{"days": 14.0}), &atRisk)
	if o.gotDays == nil || *o.gotDays != 14 {
		t.Fatalf("days = %v, want 14", o.gotDays)
	}
	decodeText(t, callTool(t, s, "at_risk_key_results", map[string]any{"days": 0.0}), &atRisk)
	if o.gotDays == nil || *o.gotDays != 0 {
		t.Fatalf("days = %v, want an explicit 0", o.gotDays)
	}
	decodeText(t, callTool(t, s, "at_risk_key_results", map[string]any{"quarter": "Q1_2026"}), &atRisk)
	if o.gotDays != nil {
		t.Fatalf("days = %d, want nil when omitted", *o.gotDays)
	}
}

func TestHandleReviewQueue(t *testing.T) {
	s := newServer(cfmcp.ServerDeps{Review: mockReview{}})
	var q []extraction.ReviewQueueEntry
	decodeText(t, callTool(t, s, "review_queue", nil), &q)
	if len(q) != 1 || q[0].PriorityOrder != 1 {
		t.Fatalf("unexpected queue %+v", q)
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := newServer(cfmcp.ServerDeps{})
	for name := range s.MCPServer().ListTools() {
		if !callTool(t, s, name, map[string]any{"quarter": "Q1", "energy_level": 5.0}).IsError {
			t.Errorf("%s: expected error result when deps are nil", name)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	static := func(k string) func() string { return func() string { return k } }

	tests := []struct {
		name   string
		key    func() string
		header string
		want   int
	}{
		{"no source", nil, "", http.StatusNoContent},
		{"empty key", static(""), "", http.StatusNoContent},
		{"missing header", static("secret"), "", http.StatusUnauthorized},
		{"bearer", static("secret"), "Bearer secret", http.StatusNoContent},
		{"bare key", static("secret"), "secret", http.StatusNoContent},
		{"wrong key", static("secret"), "Bearer nope", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			cfmcp.AuthMiddleware(tt.key, ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareFollowsRotation(t *testing.T) {
	current := "old"
	h := cfmcp.AuthMiddleware(func() string { return current },
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
		req.Header.Set("Authorization", "Bearer old")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusNoContent {
		t.Fatalf("before rotation: %d", code)
	}
	current = "new"
	if code := send(); code != http.StatusForbidden {
		t.Fatalf("after rotation: %d, want 403", code)
	}
}

// readResource drives resources/read through the JSON-RPC entry point.
func readResource(t *testing.T, s *cfmcp.Server, uri string) (text string, rpcErr bool) {
	t.Helper()
	msg, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "resources/read",
		"params": map[string]any{"uri": uri},
	})
	raw, err := json.Marshal(s.MCPServer().HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result *struct {
			Contents []struct {
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
		Error *json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response %s: %v", raw, err)
	}
	if resp.Error != nil || resp.Result == nil || len(resp.Result.Contents) == 0 {
		return "", true
	}
	return resp.Result.Contents[0].Text, false
}

func TestOverviewResources(t *testing.T) {
	o := &mockOKRs{overview: []okr.ContextOverview{{Context: "work"}}}
	s := newServer(cfmcp.ServerDeps{OKRs: o})

	tests := []struct {
		uri     string
		quarter string
	}{
		{"flourisha://okrs/overview", ""},
		{"flourisha://okrs/overview/Q2_2026", "Q2_2026"},
	}
	for _, tt := range tests {
		text, failed := readResource(t, s, tt.uri)
		if failed {
			t.Fatalf("%s: read failed", tt.uri)
		}
		if o.gotQuarter != tt.quarter {
			t.Errorf("%s: quarter = %q, want %q", tt.uri, o.gotQuarter, tt.quarter)
		}
		var got []okr.ContextOverview
		if err := json.Unmarshal([]byte(text), &got); err != nil || len(got) != 1 || got[0].Context != "work" {
			t.Errorf("%s: body %s", tt.uri, text)
		}
	}
}

func TestReviewQueueResource(t *testing.T) {
	if _, failed := readResource(t, newServer(cfmcp.ServerDeps{}), "flourisha://extraction/review-queue"); !failed {
		t.Error("expected an error without a review service")
	}
	text, failed := readResource(t, newServer(cfmcp.ServerDeps{Review: mockReview{}}), "flourisha://extraction/review-queue")
	if failed {
		t.Fatal("read failed")
	}
	var q []extraction.ReviewQueueEntry
	if err := json.Unmarshal([]byte(text), &q); err != nil || len(q) != 1 {
		t.Errorf("queue body %s", text)
	}
}
