package health

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonwraymond/cmdbus/observe"
)

func fixed(status Status) Checker {
	return NewCheckerFunc(status.String(), func(context.Context) Result {
		return Result{Status: status, Message: status.String()}
	})
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	if agg.config.Timeout != DefaultCheckTimeout {
		t.Errorf("Timeout = %v, want %v", agg.config.Timeout, DefaultCheckTimeout)
	}
	if agg.config.Sequential {
		t.Error("checks should run in parallel by default")
	}
	if agg.config.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
}

func TestAggregator_Register(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	if err := agg.Register("", fixed(StatusHealthy)); !errors.Is(err, ErrInvalidCheckerName) {
		t.Errorf("Register(\"\") error = %v, want ErrInvalidCheckerName", err)
	}
	if err := agg.Register("nil", nil); err == nil {
		t.Error("Register(nil checker) should fail")
	}

	for _, name := range []string{"b", "a", "c", "a"} {
		if err := agg.Register(name, fixed(StatusHealthy)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}
	if got := agg.CheckerNames(); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Errorf("CheckerNames() = %v, want [b a c]", got)
	}

	agg.Unregister("a")
	if got := agg.CheckerNames(); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("CheckerNames() after Unregister = %v, want [b c]", got)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, sequential := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				agg := NewAggregator(AggregatorConfig{Sequential: sequential})
				for i, s := range tt.statuses {
					_ = agg.Register(string(rune('a'+i)), fixed(s))
				}

				report := agg.CheckAll(context.Background())
				if report.Status != tt.want {
					t.Errorf("Status = %v, want %v", report.Status, tt.want)
				}
				if len(report.Results) != len(tt.statuses) {
					t.Errorf("len(Results) = %d, want %d", len(report.Results), len(tt.statuses))
				}
				if OverallStatus(report.Results) != tt.want {
					t.Errorf("OverallStatus() = %v, want %v", OverallStatus(report.Results), tt.want)
				}
			})
		}
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)

	_ = agg.Register("stuck", NewCheckerFunc("stuck", func(context.Context) Result {
		<-release
		return Healthy("late")
	}))
	_ = agg.Register("fast", fixed(StatusHealthy))

	start := time.Now()
	report := agg.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("CheckAll took %v, want bounded by timeout", elapsed)
	}

	stuck := report.Results["stuck"]
	if stuck.Status != StatusUnhealthy || !errors.Is(stuck.Error, ErrCheckTimeout) {
		t.Errorf("stuck result = %+v, want unhealthy timeout", stuck)
	}
	if report.Results["fast"].Status != StatusHealthy {
		t.Error("fast checker should still report healthy")
	}
}

func TestAggregator_PanickingChecker(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	_ = agg.Register("bad", NewCheckerFunc("bad", func(context.Context) Result { panic("boom") }))

	report := agg.CheckAll(context.Background())
	if r := report.Results["bad"]; !errors.Is(r.Error, ErrCheckPanicked) {
		t.Errorf("bad result = %+v, want ErrCheckPanicked", r)
	}
}

func TestAggregator_Check(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	var calls atomic.Int32
	_ = agg.Register("counted", NewCheckerFunc("counted", func(context.Context) Result {
		calls.Add(1)
		return Healthy("ok")
	}))

	r, err := agg.Check(context.Background(), "counted")
	if err != nil || r.Status != StatusHealthy || calls.Load() != 1 {
		t.Errorf("Check() = %+v, %v; calls = %d", r, err, calls.Load())
	}
	if r.Duration < 0 || r.Timestamp.IsZero() {
		t.Errorf("Duration/Timestamp not populated: %+v", r)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(missing) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_LogsNonHealthy(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	agg := NewAggregator(AggregatorConfig{Logger: observe.NewZapLogger(zap.New(core))})
	_ = agg.Register("ok", fixed(StatusHealthy))
	_ = agg.Register("db", NewCheckerFunc("db", func(context.Context) Result {
		return Unhealthy("down", errors.New("connection refused"))
	}))

	agg.CheckAll(context.Background())

	entries := logs.FilterMessage("health check not healthy").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["check"] != "db" || fields["status"] != "unhealthy" || fields["error"] != "connection refused" {
		t.Errorf("fields = %v", fields)
	}
}

func TestAggregator_Checker(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	_ = agg.Register("a", fixed(StatusHealthy))
	_ = agg.Register("b", fixed(StatusDegraded))

	c := agg.Checker()
	if c.Name() != "aggregate" {
		t.Errorf("Name() = %q, want aggregate", c.Name())
	}

	r := c.Check(context.Background())
	if r.Status != StatusDegraded || r.Message != "some checks degraded" {
		t.Errorf("Check() = %+v", r)
	}
	if r.Details["b"] != "degraded" {
		t.Errorf("Details = %v", r.Details)
	}
}
