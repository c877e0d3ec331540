package service

import (
	"context"
	"testing"
	"time"

	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/energy"
)

func TestEnergyService_DaySummary(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEnergyService(env.deps)
	ctx := context.Background()
	u1 := access.Claims{TenantID: tenant1, Subject: "U1"}

	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	levels := []int{8, 7, 5, 6}
	focus := []energy.FocusQuality{energy.FocusDeep, energy.FocusDeep, energy.FocusShallow, energy.FocusDistracted}
	for i := range levels {
		_, err := svc.Record(ctx, u1, energy.RecordRequest{
			Timestamp:    day.Add(time.Duration(9+2*i) * time.Hour),
			EnergyLevel:  levels[i],
			FocusQuality: focus[i],
			Source:       energy.SourceChromeExtension,
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := svc.AverageForPeriod(ctx, u1, "U1", day, day.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := energy.PeriodSummary{AvgEnergy: 6.5, DeepFocusCount: 2, ShallowFocusCount: 1, DistractedCount: 1, TotalReadings: 4}
	if got != want {
		t.Fatalf("summary = %+v, want %+v", got, want)
	}

	if n := len(env.events.all()); n != 4 {
		t.Fatalf("expected 4 events, got %d", n)
	}
	if ev := env.events.all()[0]; ev.Type != "energy.recorded" || ev.Payload["tenant_id"] != tenant1 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEnergyService_EmptyWindow(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEnergyService(env.deps)
	c := access.Claims{TenantID: tenant1, Subject: "U1"}

	got, err := svc.AverageForPeriod(context.Background(), c, "", testNow.Add(-time.Hour), testNow)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got != (energy.PeriodSummary{}) {
		t.Fatalf("expected zero summary, got %+v", got)
	}

	_, err = svc.AverageForPeriod(context.Background(), c, "", testNow, testNow.Add(-time.Hour))
	wantErr(t, err, domain.ErrValidation)
}

func TestEnergyService_RecordRejects(t *testing.T) {
	c := access.Claims{TenantID: tenant1, Subject: "U1"}
	tests := []struct {
		name   string
		claims access.Claims
		req    energy.RecordRequest
		want   error
	}{
		{"level too low", c, energy.RecordRequest{EnergyLevel: 0, FocusQuality: energy.FocusDeep}, domain.ErrValidation},
		{"level too high", c, energy.RecordRequest{EnergyLevel: 11, FocusQuality: energy.FocusDeep}, domain.ErrValidation},
		{"bad focus", c, energy.RecordRequest{EnergyLevel: 5, FocusQuality: "sleepy"}, domain.ErrValidation},
		{"bad source", c, energy.RecordRequest{EnergyLevel: 5, FocusQuality: energy.FocusDeep, Source: "fax"}, domain.ErrValidation},
		{"other user", c, energy.RecordRequest{UserID: "U2", EnergyLevel: 5, FocusQuality: energy.FocusDeep}, domain.ErrForbidden},
		{"other tenant", c, energy.RecordRequest{TenantID: tenant2, EnergyLevel: 5, FocusQuality: energy.FocusDeep}, domain.ErrForbidden},
		{"no claims", access.Claims{}, energy.RecordRequest{EnergyLevel: 5, FocusQuality: energy.FocusDeep}, domain.ErrForbidden},
		{"unknown tenant", access.Claims{TenantID: "nope", Subject: "U1"}, energy.RecordRequest{EnergyLevel: 5, FocusQuality: energy.FocusDeep}, domain.ErrNotFound},
		{"disabled tenant", access.Claims{TenantID: tenantDisabled, Subject: "U1"}, energy.RecordRequest{EnergyLevel: 5, FocusQuality: energy.FocusDeep}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			svc := NewEnergyService(env.deps)
			_, err := svc.Record(context.Background(), tt.claims, tt.req)
			wantErr(t, err, tt.want)
			if len(env.store.readings) != 0 {
				t.Fatal("rejected reading was persisted")
			}
		})
	}
}

func TestEnergyService_UpdateAuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEnergyService(env.deps)
	ctx := context.Background()
	author := access.Claims{TenantID: tenant1, Subject: "U1"}

	r, err := svc.Record(ctx, author, energy.RecordRequest{EnergyLevel: 4, FocusQuality: energy.FocusShallow})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !r.Timestamp.Equal(testNow) || r.Source != energy.SourceManual {
		t.Fatalf("defaults not applied: %+v", r)
	}

	level := 9
	_, err = svc.Update(ctx, access.Claims{TenantID: tenant1, Subject: "U2"}, r.ID, energy.UpdateRequest{EnergyLevel: &level})
	wantErr(t, err, domain.ErrForbidden)

	_, err = svc.Update(ctx, access.Claims{TenantID: tenant2, Subject: "U1"}, r.ID, energy.UpdateRequest{EnergyLevel: &level})
	wantErr(t, err, domain.ErrNotFound)

	bad := 12
	_, err = svc.Update(ctx, author, r.ID, energy.UpdateRequest{EnergyLevel: &bad})
	wantErr(t, err, domain.ErrValidation)

	before := env.store.auditCount()
	got, err := svc.Update(ctx, author, r.ID, energy.UpdateRequest{EnergyLevel: &level})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.EnergyLevel != 9 {
		t.Fatalf("energy_level = %d, want 9", got.EnergyLevel)
	}
	if env.store.auditCount() != before+1 {
		t.Fatal("expected the correction to be audited")
	}
}

func TestEnergyService_ListIsTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEnergyService(env.deps)
	ctx := context.Background()

	if _, err := svc.Record(ctx, access.Claims{TenantID: tenant1, Subject: "U1"},
		energy.RecordRequest{EnergyLevel: 5, FocusQuality: energy.FocusDeep}); err != nil {
		t.Fatalf("record: %v", err)
	}
	rows, err := svc.List(ctx, access.Claims{TenantID: tenant2, Subject: "U9"}, "U1", testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("other tenant saw %d readings", len(rows))
	}
}
