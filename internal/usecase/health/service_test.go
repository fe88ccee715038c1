package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockDebt struct {
	counts map[string]int64
	err    error
}

func (m *mockDebt) Count(_ context.Context) (map[string]int64, error) { return m.counts, m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockDebt{counts: map[string]int64{"route": 2, "trip": 1}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK || r.Checks["index"] != CheckOK {
		t.Errorf("unexpected checks %v", r.Checks)
	}
	if r.Debt != 3 {
		t.Errorf("expected debt 3, got %d", r.Debt)
	}
	if r.DebtByEntity["route"] != 2 || r.DebtByEntity["trip"] != 1 {
		t.Errorf("unexpected debt split %v", r.DebtByEntity)
	}
}

func TestCheck_IndexDownIsDegraded(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
	if r.Debt != -1 {
		t.Errorf("expected unknown debt, got %d", r.Debt)
	}
}

func TestCheck_DatabaseDownIsUnhealthy(t *testing.T) {
	tests := []struct {
		name  string
		index error
	}{
		{"index up", nil},
		{"index down", errors.New("down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{err: tt.index}, nil)
			r := svc.Check(context.Background())
			if r.Status != Unhealthy {
				t.Errorf("expected %q, got %q", Unhealthy, r.Status)
			}
			if r.Checks["database"] != CheckError {
				t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
			}
		})
	}
}

func TestCheck_DebtError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockDebt{err: errors.New("no table")})
	r := svc.Check(context.Background())
	if r.Debt != -1 || r.DebtByEntity != nil {
		t.Errorf("expected unknown debt on error, got %d %v", r.Debt, r.DebtByEntity)
	}
}

func TestCheck_NoDebtIsZero(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockDebt{})
	r := svc.Check(context.Background())
	if r.Debt != 0 || r.DebtByEntity == nil {
		t.Errorf("expected zero known debt, got %d %v", r.Debt, r.DebtByEntity)
	}
}
