package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection with no external dependencies
type Collector struct {
	bindingMetrics    *BindingMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// BindingMetrics tracks binding and bridge activity
type BindingMetrics struct {
	// View lifecycle
	ViewsCreated       int64 `json:"views_created"`
	ViewsDisposed      int64 `json:"views_disposed"`
	ActiveViews        int64 `json:"active_views"`
	MaxConcurrentViews int64 `json:"max_concurrent_views"`

	// Model -> DOM
	Renders      int64 `json:"renders"`
	RenderErrors int64 `json:"render_errors"`

	// DOM -> model
	ModelWrites     int64 `json:"model_writes"`
	TokenMismatches int64 `json:"token_mismatches"`

	// Re-entrant notifications dropped by the sync guard
	DeclinedCycles int64 `json:"declined_cycles"`

	ResolutionMisses int64 `json:"resolution_misses"`
	EventsForwarded  int64 `json:"events_forwarded"`
	ScriptRuns       int64 `json:"script_runs"`
	ScriptErrors     int64 `json:"script_errors"`

	// View tokens
	TokensGenerated int64 `json:"tokens_generated"`
	TokensVerified  int64 `json:"tokens_verified"`
	TokenFailures   int64 `json:"token_failures"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		bindingMetrics: &BindingMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// IncrementViewCreated records a new bound view
func (c *Collector) IncrementViewCreated() {
	atomic.AddInt64(&c.bindingMetrics.ViewsCreated, 1)
	currentActive := atomic.AddInt64(&c.bindingMetrics.ActiveViews, 1)

	// Update max concurrent if needed
	for {
		max := atomic.LoadInt64(&c.bindingMetrics.MaxConcurrentViews)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.bindingMetrics.MaxConcurrentViews, max, currentActive) {
			break
		}
	}
}

// IncrementViewDisposed records a view teardown
func (c *Collector) IncrementViewDisposed() {
	atomic.AddInt64(&c.bindingMetrics.ViewsDisposed, 1)
	atomic.AddInt64(&c.bindingMetrics.ActiveViews, -1)
}

// IncrementRender records a template render into the DOM
func (c *Collector) IncrementRender() {
	atomic.AddInt64(&c.bindingMetrics.Renders, 1)
}

// IncrementRenderError records a render that failed
func (c *Collector) IncrementRenderError() {
	atomic.AddInt64(&c.bindingMetrics.RenderErrors, 1)
}

// IncrementModelWrite records a batched data model update from the DOM
func (c *Collector) IncrementModelWrite() {
	atomic.AddInt64(&c.bindingMetrics.ModelWrites, 1)
}

// IncrementTokenMismatch records an attribute value that failed to decode
func (c *Collector) IncrementTokenMismatch() {
	atomic.AddInt64(&c.bindingMetrics.TokenMismatches, 1)
}

// IncrementDeclined records a notification dropped while the guard was held
func (c *Collector) IncrementDeclined() {
	atomic.AddInt64(&c.bindingMetrics.DeclinedCycles, 1)
}

// IncrementResolutionMiss records an anchor that could not be found
func (c *Collector) IncrementResolutionMiss() {
	atomic.AddInt64(&c.bindingMetrics.ResolutionMisses, 1)
}

// IncrementEventForwarded records an outbound DOM event
func (c *Collector) IncrementEventForwarded() {
	atomic.AddInt64(&c.bindingMetrics.EventsForwarded, 1)
}

// IncrementScriptRun records a script execution and whether it failed
func (c *Collector) IncrementScriptRun(failed bool) {
	atomic.AddInt64(&c.bindingMetrics.ScriptRuns, 1)
	if failed {
		atomic.AddInt64(&c.bindingMetrics.ScriptErrors, 1)
	}
}

// IncrementTokenGenerated records a token generation
func (c *Collector) IncrementTokenGenerated() {
	atomic.AddInt64(&c.bindingMetrics.TokensGenerated, 1)
}

// IncrementTokenVerified records a successful token verification
func (c *Collector) IncrementTokenVerified() {
	atomic.AddInt64(&c.bindingMetrics.TokensVerified, 1)
}

// IncrementTokenFailure records a token verification failure
func (c *Collector) IncrementTokenFailure() {
	atomic.AddInt64(&c.bindingMetrics.TokenFailures, 1)
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current binding metrics
func (c *Collector) GetMetrics() BindingMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := c.bindingMetrics
	return BindingMetrics{
		ViewsCreated:       atomic.LoadInt64(&m.ViewsCreated),
		ViewsDisposed:      atomic.LoadInt64(&m.ViewsDisposed),
		ActiveViews:        atomic.LoadInt64(&m.ActiveViews),
		MaxConcurrentViews: atomic.LoadInt64(&m.MaxConcurrentViews),
		Renders:            atomic.LoadInt64(&m.Renders),
		RenderErrors:       atomic.LoadInt64(&m.RenderErrors),
		ModelWrites:        atomic.LoadInt64(&m.ModelWrites),
		TokenMismatches:    atomic.LoadInt64(&m.TokenMismatches),
		DeclinedCycles:     atomic.LoadInt64(&m.DeclinedCycles),
		ResolutionMisses:   atomic.LoadInt64(&m.ResolutionMisses),
		EventsForwarded:    atomic.LoadInt64(&m.EventsForwarded),
		ScriptRuns:         atomic.LoadInt64(&m.ScriptRuns),
		ScriptErrors:       atomic.LoadInt64(&m.ScriptErrors),
		TokensGenerated:    atomic.LoadInt64(&m.TokensGenerated),
		TokensVerified:     atomic.LoadInt64(&m.TokensVerified),
		TokenFailures:      atomic.LoadInt64(&m.TokenFailures),
		StartTime:          m.StartTime,
		Uptime:             time.Since(c.startTime),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.bindingMetrics
	for _, counter := range []*int64{
		&m.ViewsCreated, &m.ViewsDisposed, &m.ActiveViews, &m.MaxConcurrentViews,
		&m.Renders, &m.RenderErrors, &m.ModelWrites, &m.TokenMismatches,
		&m.DeclinedCycles, &m.ResolutionMisses, &m.EventsForwarded,
		&m.ScriptRuns, &m.ScriptErrors,
		&m.TokensGenerated, &m.TokensVerified, &m.TokenFailures,
	} {
		atomic.StoreInt64(counter, 0)
	}

	// Reset custom counters
	c.operationCounters = make(map[string]*int64)

	// Reset start time
	c.startTime = time.Now()
	m.StartTime = c.startTime
}

// GetErrorRate returns the percentage of renders that failed
func (c *Collector) GetErrorRate() float64 {
	renders := atomic.LoadInt64(&c.bindingMetrics.Renders)
	errors := atomic.LoadInt64(&c.bindingMetrics.RenderErrors)

	if renders+errors == 0 {
		return 0.0
	}

	return float64(errors) / float64(renders+errors) * 100.0
}

// GetTokenSuccessRate returns the success rate for token operations
func (c *Collector) GetTokenSuccessRate() float64 {
	verified := atomic.LoadInt64(&c.bindingMetrics.TokensVerified)
	failures := atomic.LoadInt64(&c.bindingMetrics.TokenFailures)

	total := verified + failures
	if total == 0 {
		return 100.0 // No operations means 100% success rate
	}

	return float64(verified) / float64(total) * 100.0
}
