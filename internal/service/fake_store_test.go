package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/domain/okr"
	"github.com/flourisha/brain/internal/domain/tenant"
	"github.com/flourisha/brain/internal/port/database"
)

// fakeStore is an in-memory database.Store. Each method holds the lock for its whole
// duration, which gives ApplyKeyResult the same all-or-nothing behaviour as a transaction.
type fakeStore struct {
	mu sync.Mutex

	tenants     map[string]*tenant.Tenant
	tenantGets  int
	readings    map[string]*energy.Reading
	keyResults  map[string]*okr.KeyResult
	history     []okr.HistoryEntry
	tags        map[string]*okr.Tag
	assignments map[[2]string]bool
	documents   map[string]*extraction.Document
	feedback    []extraction.Feedback
	examples    map[string]*extraction.Example
	rules       []extraction.Rule
	results     []extraction.Result
	apiKeys     map[string]*apikey.APIKey
	audits      []audit.Entry
}

var _ database.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:     make(map[string]*tenant.Tenant),
		readings:    make(map[string]*energy.Reading),
		keyResults:  make(map[string]*okr.KeyResult),
		tags:        make(map[string]*okr.Tag),
		assignments: make(map[[2]string]bool),
		documents:   make(map[string]*extraction.Document),
		examples:    make(map[string]*extraction.Example),
		apiKeys:     make(map[string]*apikey.APIKey),
	}
}

func (f *fakeStore) addTenant(id string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[id] = &tenant.Tenant{ID: id, Name: id, Slug: id, Enabled: enabled}
}

func (f *fakeStore) addDocument(d extraction.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[d.ID] = &d
}

func (f *fakeStore) addKeyResult(kr okr.KeyResult) *okr.KeyResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kr.ID == "" {
		kr.ID = uuid.NewString()
	}
	f.keyResults[kr.ID] = &kr
	return &kr
}

func (f *fakeStore) auditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audits)
}

// --- tenants ---

func (f *fakeStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenantGets++
	t, ok := f.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tenants {
		if t.Slug == req.Slug {
			return nil, fmt.Errorf("tenant slug %s: %w", req.Slug, domain.ErrConflict)
		}
	}
	t := &tenant.Tenant{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug, Enabled: true, CreatedAt: time.Now()}
	f.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- energy ---

func (f *fakeStore) CreateEnergyReading(_ context.Context, r *energy.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	cp := *r
	f.readings[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetEnergyReading(_ context.Context, id string) (*energy.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.readings[id]
	if !ok {
		return nil, fmt.Errorf("energy reading %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateEnergyReading(_ context.Context, r *energy.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.readings[r.ID]; !ok {
		return fmt.Errorf("energy reading %s: %w", r.ID, domain.ErrNotFound)
	}
	cp := *r
	f.readings[r.ID] = &cp
	return nil
}

func (f *fakeStore) ListEnergyReadings(_ context.Context, tenantID, userID string, start, end time.Time) ([]energy.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []energy.Reading{}
	for _, r := range f.readings {
		if r.TenantID != tenantID || r.UserID != userID {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// --- key results ---

func (f *fakeStore) GetKeyResult(_ context.Context, id string) (*okr.KeyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kr, ok := f.keyResults[id]
	if !ok {
		return nil, fmt.Errorf("key result %s: %w", id, domain.ErrNotFound)
	}
	cp := *kr
	return &cp, nil
}

func (f *fakeStore) ApplyKeyResult(_ context.Context, key okr.Key, fn okr.Mutation) (*okr.KeyResult, *okr.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prev *okr.KeyResult
	for _, kr := range f.keyResults {
		if kr.Key == key {
			cp := *kr
			prev = &cp
			break
		}
	}
	next, entry, err := fn(prev)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		next.ID = uuid.NewString()
	} else {
		next.ID = prev.ID
	}
	stored := *next
	f.keyResults[next.ID] = &stored
	if entry != nil {
		entry.ID = uuid.NewString()
		entry.OKRTrackingID = next.ID
		f.history = append(f.history, *entry)
	}
	return next, entry, nil
}

// ListVisibleKeyResults applies the same visibility predicate the SQL store does.
func (f *fakeStore) ListVisibleKeyResults(_ context.Context, tenantID, subject string, flt okr.Filter) ([]okr.KeyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := access.Claims{TenantID: tenantID, Subject: subject}
	out := []okr.KeyResult{}
	for _, kr := range f.keyResults {
		if access.CanReadKeyResult(kr, c) && flt.Match(kr) {
			out = append(out, *kr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (f *fakeStore) ListProgressHistory(_ context.Context, keyResultID string) ([]okr.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []okr.HistoryEntry{}
	for _, e := range f.history {
		if e.OKRTrackingID == keyResultID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- tags ---

func (f *fakeStore) CreateTag(_ context.Context, t *okr.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tags {
		if existing.Name == t.Name && existing.UserID == t.UserID && existing.WorkspaceID == t.WorkspaceID {
			return fmt.Errorf("tag %q: %w", t.Name, domain.ErrConflict)
		}
	}
	t.ID = uuid.NewString()
	cp := *t
	f.tags[t.ID] = &cp
	return nil
}

func (f *fakeStore) GetTag(_ context.Context, id string) (*okr.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tags[id]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTags(_ context.Context, scope okr.TagScope) ([]okr.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []okr.Tag{}
	for _, t := range f.tags {
		if (scope.UserID != "" && t.UserID == scope.UserID) || (scope.WorkspaceID != "" && t.WorkspaceID == scope.WorkspaceID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) AssignTag(_ context.Context, okrID, tagID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]string{okrID, tagID}
	if f.assignments[k] {
		return false, nil
	}
	f.assignments[k] = true
	return true, nil
}

func (f *fakeStore) UnassignTag(_ context.Context, okrID, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]string{okrID, tagID}
	if !f.assignments[k] {
		return fmt.Errorf("assignment %s/%s: %w", okrID, tagID, domain.ErrNotFound)
	}
	delete(f.assignments, k)
	return nil
}

func (f *fakeStore) ListTagsForKeyResult(_ context.Context, okrID string) ([]okr.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []okr.Tag{}
	for k := range f.assignments {
		if k[0] == okrID {
			out = append(out, *f.tags[k[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- extraction ---

func (f *fakeStore) GetDocument(_ context.Context, id string) (*extraction.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) CreateFeedback(_ context.Context, fb *extraction.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fb.ID = uuid.NewString()
	f.feedback = append(f.feedback, *fb)
	return nil
}

func (f *fakeStore) ListFeedback(_ context.Context, tenantID, documentID string) ([]extraction.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []extraction.Feedback{}
	for _, fb := range f.feedback {
		if fb.TenantID == tenantID && fb.DocumentID == documentID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkFeedbackForTraining(_ context.Context, tenantID string, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for i := range f.feedback {
		fb := &f.feedback[i]
		if fb.TenantID == tenantID && want[fb.ID] && !fb.UsedForTraining {
			fb.UsedForTraining = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateExample(_ context.Context, e *extraction.Example) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	cp := *e
	f.examples[e.ID] = &cp
	return nil
}

func (f *fakeStore) GetExample(_ context.Context, id string) (*extraction.Example, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.examples[id]
	if !ok {
		return nil, fmt.Errorf("example %s: %w", id, domain.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) ListExamples(_ context.Context, tenantID string, flt extraction.ExampleFilter) ([]extraction.Example, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []extraction.Example{}
	for _, e := range f.examples {
		if e.TenantID != tenantID || (flt.ActiveOnly && !e.IsActive) {
			continue
		}
		if flt.Category != "" && e.DocumentCategory != flt.Category {
			continue
		}
		if flt.Difficulty != "" && e.Difficulty != flt.Difficulty {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ExampleName < out[j].ExampleName
	})
	return out, nil
}

func (f *fakeStore) RecordExampleUsage(_ context.Context, id string, fn func(extraction.Example) extraction.Example) (*extraction.Example, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.examples[id]
	if !ok {
		return nil, fmt.Errorf("example %s: %w", id, domain.ErrNotFound)
	}
	next := fn(*e)
	f.examples[id] = &next
	cp := next
	return &cp, nil
}

func (f *fakeStore) CreateRule(_ context.Context, r *extraction.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	f.rules = append(f.rules, *r)
	return nil
}

func (f *fakeStore) GetRule(_ context.Context, id string) (*extraction.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rules {
		if f.rules[i].ID == id {
			cp := f.rules[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
}

func (f *fakeStore) ListRules(_ context.Context, tenantID string, activeOnly bool) ([]extraction.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []extraction.Rule{}
	for _, r := range f.rules {
		if r.TenantID == tenantID && (!activeOnly || r.IsActive) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateResult(_ context.Context, r *extraction.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	f.results = append(f.results, *r)
	return nil
}

func (f *fakeStore) CreateResults(_ context.Context, rs []*extraction.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rs {
		r.ID = uuid.NewString()
		f.results = append(f.results, *r)
	}
	return nil
}

func (f *fakeStore) ListResults(_ context.Context, documentID string) ([]extraction.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []extraction.Result{}
	for _, r := range f.results {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReviewCandidates(_ context.Context, tenantID string) ([]extraction.ReviewCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []extraction.ReviewCandidate{}
	for _, d := range f.documents {
		if d.TenantID != tenantID {
			continue
		}
		c := extraction.ReviewCandidate{Document: *d}
		for _, r := range f.results {
			if r.DocumentID == d.ID && !r.Passed {
				c.FailedValidations++
			}
		}
		for _, fb := range f.feedback {
			if fb.DocumentID == d.ID && !fb.UsedForTraining {
				c.PendingFeedback++
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// --- api keys and audit ---

func (f *fakeStore) CreateAPIKey(_ context.Context, k *apikey.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k.ID = uuid.NewString()
	k.CreatedAt = time.Now()
	cp := *k
	f.apiKeys[k.KeyHash] = &cp
	return nil
}

func (f *fakeStore) GetAPIKeyByHash(_ context.Context, hash string) (*apikey.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.apiKeys[hash]
	if !ok {
		return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	cp := *k
	return &cp, nil
}

func (f *fakeStore) AppendAudit(_ context.Context, e *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	f.audits = append(f.audits, *e)
	return nil
}
