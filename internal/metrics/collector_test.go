package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.bindingMetrics == nil {
		t.Fatal("bindingMetrics not initialized")
	}

	if collector.operationCounters == nil {
		t.Fatal("operationCounters not initialized")
	}

	metrics := collector.GetMetrics()
	if metrics.Renders != 0 || metrics.ActiveViews != 0 {
		t.Errorf("Expected zero counters, got %+v", metrics)
	}
	if metrics.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestViewLifecycleMetrics(t *testing.T) {
	collector := NewCollector()

	collector.IncrementViewCreated()
	collector.IncrementViewCreated()
	collector.IncrementViewCreated()

	metrics := collector.GetMetrics()
	if metrics.ViewsCreated != 3 {
		t.Errorf("Expected 3 views created, got %d", metrics.ViewsCreated)
	}
	if metrics.ActiveViews != 3 {
		t.Errorf("Expected 3 active views, got %d", metrics.ActiveViews)
	}
	if metrics.MaxConcurrentViews != 3 {
		t.Errorf("Expected max concurrent views 3, got %d", metrics.MaxConcurrentViews)
	}

	collector.IncrementViewDisposed()
	metrics = collector.GetMetrics()
	if metrics.ViewsDisposed != 1 {
		t.Errorf("Expected 1 view disposed, got %d", metrics.ViewsDisposed)
	}
	if metrics.ActiveViews != 2 {
		t.Errorf("Expected 2 active views, got %d", metrics.ActiveViews)
	}
	if metrics.MaxConcurrentViews != 3 {
		t.Errorf("Max concurrent views should stay 3, got %d", metrics.MaxConcurrentViews)
	}
}

func TestBindingCounters(t *testing.T) {
	collector := NewCollector()

	collector.IncrementRender()
	collector.IncrementRender()
	collector.IncrementRender()
	collector.IncrementRenderError()
	collector.IncrementModelWrite()
	collector.IncrementTokenMismatch()
	collector.IncrementDeclined()
	collector.IncrementDeclined()
	collector.IncrementResolutionMiss()
	collector.IncrementEventForwarded()
	collector.IncrementScriptRun(false)
	collector.IncrementScriptRun(true)

	metrics := collector.GetMetrics()
	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"renders", metrics.Renders, 3},
		{"render errors", metrics.RenderErrors, 1},
		{"model writes", metrics.ModelWrites, 1},
		{"token mismatches", metrics.TokenMismatches, 1},
		{"declined", metrics.DeclinedCycles, 2},
		{"resolution misses", metrics.ResolutionMisses, 1},
		{"events", metrics.EventsForwarded, 1},
		{"script runs", metrics.ScriptRuns, 2},
		{"script errors", metrics.ScriptErrors, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}

	if rate := collector.GetErrorRate(); rate != 25.0 {
		t.Errorf("Expected error rate 25%%, got %f", rate)
	}
}

func TestTokenMetrics(t *testing.T) {
	collector := NewCollector()

	if rate := collector.GetTokenSuccessRate(); rate != 100.0 {
		t.Errorf("Expected 100%% success rate with no operations, got %f", rate)
	}

	collector.IncrementTokenGenerated()
	collector.IncrementTokenVerified()
	collector.IncrementTokenVerified()
	collector.IncrementTokenVerified()
	collector.IncrementTokenFailure()

	metrics := collector.GetMetrics()
	if metrics.TokensGenerated != 1 {
		t.Errorf("Expected 1 token generated, got %d", metrics.TokensGenerated)
	}
	if rate := collector.GetTokenSuccessRate(); rate != 75.0 {
		t.Errorf("Expected 75%% success rate, got %f", rate)
	}
}

func TestCustomCounters(t *testing.T) {
	collector := NewCollector()

	collector.IncrementCustomCounter("frames")
	collector.IncrementCustomCounter("frames")
	collector.IncrementCustomCounter("pings")

	counters := collector.GetCustomCounters()
	if counters["frames"] != 2 {
		t.Errorf("Expected frames=2, got %d", counters["frames"])
	}
	if counters["pings"] != 1 {
		t.Errorf("Expected pings=1, got %d", counters["pings"])
	}
}

func TestReset(t *testing.T) {
	collector := NewCollector()
	collector.IncrementViewCreated()
	collector.IncrementRender()
	collector.IncrementCustomCounter("x")

	collector.Reset()

	metrics := collector.GetMetrics()
	if metrics.ViewsCreated != 0 || metrics.Renders != 0 || metrics.ActiveViews != 0 {
		t.Errorf("Expected zero counters after reset, got %+v", metrics)
	}
	if len(collector.GetCustomCounters()) != 0 {
		t.Error("Expected custom counters to be cleared")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				collector.IncrementRender()
				collector.IncrementCustomCounter("c")
			}
		}()
	}
	wg.Wait()

	if got := collector.GetMetrics().Renders; got != 1000 {
		t.Errorf("Expected 1000 renders, got %d", got)
	}
	if got := collector.GetCustomCounters()["c"]; got != 1000 {
		t.Errorf("Expected custom counter 1000, got %d", got)
	}
}

func TestMetricsJSON(t *testing.T) {
	collector := NewCollector()
	collector.IncrementEventForwarded()

	data, err := json.Marshal(collector.GetMetrics())
	if err != nil {
		t.Fatalf("Failed to marshal metrics: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal metrics: %v", err)
	}
	if decoded["events_forwarded"] != float64(1) {
		t.Errorf("Expected events_forwarded=1, got %v", decoded["events_forwarded"])
	}
}
