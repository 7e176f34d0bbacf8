package quota_test

import (
	"context"
	"errors"
	"testing"

	"github.com/relaydesk/tenantguard/internal/quota"
)

func limits(m map[string]int64) quota.LimitsFunc {
	return func(_ context.Context, _ string) (map[string]int64, error) {
		return m, nil
	}
}

func usage(n int64) quota.UsageFunc {
	return func(_ context.Context, _, _ string) (int64, error) {
		return n, nil
	}
}

func TestNewGuardRequiresLookups(t *testing.T) {
	t.Parallel()

	if _, err := quota.NewGuard(nil, usage(0)); !errors.Is(err, quota.ErrMissingLookup) {
		t.Errorf("nil limits: err = %v", err)
	}
	if _, err := quota.NewGuard(limits(nil), nil); !errors.Is(err, quota.ErrMissingLookup) {
		t.Errorf("nil usage: err = %v", err)
	}
	if _, err := quota.NewGuard(limits(nil), usage(0)); err != nil {
		t.Errorf("both set: err = %v", err)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		limits map[string]int64
		usage  int64
		want   quota.Result
	}{
		{
			name:   "under limit allowed",
			limits: map[string]int64{"chatbots": 10},
			usage:  3,
			want:   quota.Result{Allowed: true, Limit: 10, Usage: 3},
		},
		{
			name:   "at limit denied",
			limits: map[string]int64{"chatbots": 1000},
			usage:  1000,
			want:   quota.Result{Allowed: false, Limit: 1000, Usage: 1000},
		},
		{
			name:   "over limit denied",
			limits: map[string]int64{"chatbots": 10},
			usage:  11,
			want:   quota.Result{Allowed: false, Limit: 10, Usage: 11},
		},
		{
			name:   "no limits configured allows",
			limits: nil,
			usage:  99999,
			want:   quota.Result{Allowed: true},
		},
		{
			name:   "resource type without entry allows",
			limits: map[string]int64{"messages": 5},
			usage:  99999,
			want:   quota.Result{Allowed: true},
		},
		{
			name:   "zero limit means unlimited",
			limits: map[string]int64{"chatbots": 0},
			usage:  99999,
			want:   quota.Result{Allowed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := quota.NewGuard(limits(tt.limits), usage(tt.usage))
			if err != nil {
				t.Fatalf("new guard: %v", err)
			}

			got, err := g.Check(t.Context(), "tenant-1", "chatbots")
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckSkipsUsageLookupWithoutLimit(t *testing.T) {
	t.Parallel()

	usageCalled := false
	g, err := quota.NewGuard(limits(nil), func(_ context.Context, _, _ string) (int64, error) {
		usageCalled = true

		return 0, nil
	})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	if _, err := g.Check(t.Context(), "tenant-1", "chatbots"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if usageCalled {
		t.Error("usage lookup must be skipped when no limit applies")
	}
}

func TestCheckPropagatesLookupErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")

	g, err := quota.NewGuard(
		func(_ context.Context, _ string) (map[string]int64, error) { return nil, boom },
		usage(0),
	)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := g.Check(t.Context(), "tenant-1", "chatbots"); !errors.Is(err, boom) {
		t.Errorf("limits fault: err = %v, want wrapped store error", err)
	}

	g, err = quota.NewGuard(
		limits(map[string]int64{"chatbots": 5}),
		func(_ context.Context, _, _ string) (int64, error) { return 0, boom },
	)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := g.Check(t.Context(), "tenant-1", "chatbots"); !errors.Is(err, boom) {
		t.Errorf("usage fault: err = %v, want wrapped store error", err)
	}
}
