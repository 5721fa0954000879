// Package memory budgets the rendered markup held by live views.
package memory

import (
	"fmt"
	"sort"
	"sync"
)

// Manager tracks the markup size of every live view against a byte budget.
type Manager struct {
	maxBytes   int64
	thresholds Thresholds
	usage      map[string]int64 // viewID -> markup bytes
	current    int64
	mu         sync.RWMutex
}

// Config defines the budget.
type Config struct {
	MaxMemoryMB          int // Maximum markup held by all views in MB
	WarningThresholdPct  int // Warning threshold percentage
	CriticalThresholdPct int // Critical threshold percentage
}

// Thresholds are the budget levels in bytes.
type Thresholds struct {
	WarningBytes  int64
	CriticalBytes int64
}

// DefaultConfig returns the default budget.
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:          64,
		WarningThresholdPct:  75,
		CriticalThresholdPct: 90,
	}
}

// NewManager creates a manager. Zero config fields take their defaults.
func NewManager(config Config) *Manager {
	def := DefaultConfig()
	if config.MaxMemoryMB <= 0 {
		config.MaxMemoryMB = def.MaxMemoryMB
	}
	if config.WarningThresholdPct <= 0 {
		config.WarningThresholdPct = def.WarningThresholdPct
	}
	if config.CriticalThresholdPct <= 0 {
		config.CriticalThresholdPct = def.CriticalThresholdPct
	}
	return newManager(int64(config.MaxMemoryMB)*1024*1024, config)
}

func newManager(maxBytes int64, config Config) *Manager {
	return &Manager{
		maxBytes: maxBytes,
		usage:    make(map[string]int64),
		thresholds: Thresholds{
			WarningBytes:  maxBytes * int64(config.WarningThresholdPct) / 100,
			CriticalBytes: maxBytes * int64(config.CriticalThresholdPct) / 100,
		},
	}
}

// Allocate records a new view holding size bytes of markup.
func (m *Manager) Allocate(viewID string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usage[viewID]; exists {
		return fmt.Errorf("view already allocated: %s", viewID)
	}
	if m.current+size > m.maxBytes {
		return fmt.Errorf("view allocation would exceed limit: %d + %d > %d", m.current, size, m.maxBytes)
	}
	m.usage[viewID] = size
	m.current += size
	return nil
}

// Update records a view's new markup size.
func (m *Manager) Update(viewID string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.usage[viewID]
	if !exists {
		return fmt.Errorf("view not found: %s", viewID)
	}
	delta := size - old
	if m.current+delta > m.maxBytes {
		return fmt.Errorf("view update would exceed limit: %d + %d > %d", m.current, delta, m.maxBytes)
	}
	m.usage[viewID] = size
	m.current += delta
	return nil
}

// Release forgets a view.
func (m *Manager) Release(viewID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size, exists := m.usage[viewID]; exists {
		m.current -= size
		delete(m.usage, viewID)
	}
}

// Status is a snapshot of budget usage.
type Status struct {
	CurrentUsage int64   `json:"current_usage"`
	MaxUsage     int64   `json:"max_usage"`
	UsagePercent float64 `json:"usage_percent"`
	Level        string  `json:"level"` // OK, WARNING or CRITICAL
	ActiveViews  int     `json:"active_views"`
}

// GetStatus returns the current usage.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		CurrentUsage: m.current,
		MaxUsage:     m.maxBytes,
		ActiveViews:  len(m.usage),
		Level:        "OK",
	}
	if m.maxBytes > 0 {
		status.UsagePercent = float64(m.current) / float64(m.maxBytes) * 100
	}
	switch {
	case m.current >= m.thresholds.CriticalBytes:
		status.Level = "CRITICAL"
	case m.current >= m.thresholds.WarningBytes:
		status.Level = "WARNING"
	}
	return status
}

// CanAllocate reports whether size more bytes fit the budget.
func (m *Manager) CanAllocate(size int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current+size <= m.maxBytes
}

// ViewUsage is the markup size of one view.
type ViewUsage struct {
	ViewID string `json:"view_id"`
	Bytes  int64  `json:"bytes"`
}

// TopViews returns the largest views first.
func (m *Manager) TopViews(limit int) []ViewUsage {
	m.mu.RLock()
	out := make([]ViewUsage, 0, len(m.usage))
	for id, size := range m.usage {
		out = append(out, ViewUsage{ViewID: id, Bytes: size})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].ViewID < out[j].ViewID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
