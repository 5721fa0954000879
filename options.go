package livebind

import (
	"log"

	"github.com/livefir/livebind/internal/metrics"
)

// Config holds controller configuration options
type Config struct {
	Logger       *log.Logger
	ErrorHandler ErrorHandler
	Emitter      Emitter
	Layout       Layout
	Resolver     ChildResolver
	Metrics      *metrics.Collector
	ViewModel    *ViewModel // Overrides Definition.Model when set
}

// Option is a functional option for configuring a Controller
type Option func(*Config)

// WithLogger sets the logger used for non-fatal binding errors
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithErrorHandler receives every non-fatal error in addition to the log
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithEmitter sets the receiver of forwarded DOM events
func WithEmitter(e Emitter) Option {
	return func(c *Config) {
		c.Emitter = e
	}
}

// WithLayout sets the host sizing system
func WithLayout(l Layout) Option {
	return func(c *Config) {
		c.Layout = l
	}
}

// WithChildResolver sets how non-literal children are rendered
func WithChildResolver(r ChildResolver) Option {
	return func(c *Config) {
		c.Resolver = r
	}
}

// WithMetrics records binding activity in collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithViewModel replaces the definition's view model
func WithViewModel(vm ViewModel) Option {
	return func(c *Config) {
		c.ViewModel = &vm
	}
}

func defaultConfig() Config {
	return Config{
		Logger:  log.Default(),
		Emitter: EmitterFunc(func(DOMEvent) {}),
		Layout:  StyleSizer{},
		Metrics: metrics.NewCollector(),
	}
}
