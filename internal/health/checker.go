// Package health runs periodic liveness checks against the backing database.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/personstore/personstore/internal/config"
	"github.com/personstore/personstore/internal/metrics"
)

// Status represents the health status of the database.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Pinger is the probe the checker runs against the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// State holds the most recent health observation.
type State struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Checker performs periodic health checks on the database.
type Checker struct {
	mu    sync.RWMutex
	state State

	pinger  Pinger
	metrics *metrics.Collector

	// guarded by mu; reloadable at runtime
	interval         time.Duration
	timeout          time.Duration
	failureThreshold int

	reloadCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewChecker creates a health checker for the given database probe.
func NewChecker(p Pinger, m *metrics.Collector, cfg config.HealthCheckConfig) *Checker {
	return &Checker{
		state:            State{Status: StatusUnknown},
		pinger:           p,
		metrics:          m,
		interval:         cfg.Interval,
		timeout:          cfg.Timeout,
		failureThreshold: cfg.FailureThreshold,
		reloadCh:         make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
	}
}

// UpdateConfig applies a reloaded cadence. The running check loop picks up
// the new interval on its next wakeup.
func (c *Checker) UpdateConfig(cfg config.HealthCheckConfig) {
	c.mu.Lock()
	c.interval = cfg.Interval
	c.timeout = cfg.Timeout
	c.failureThreshold = cfg.FailureThreshold
	c.mu.Unlock()

	select {
	case c.reloadCh <- struct{}{}:
	default:
	}
	slog.Info("health checker config updated",
		"interval", cfg.Interval, "timeout", cfg.Timeout, "threshold", cfg.FailureThreshold)
}

// Start begins periodic health checking.
func (c *Checker) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	c.mu.RLock()
	interval, threshold := c.interval, c.failureThreshold
	c.mu.RUnlock()
	slog.Info("health checker started", "interval", interval, "threshold", threshold)
}

// Stop stops the health checker. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	slog.Info("health checker stopped")
}

func (c *Checker) run() {
	// Run immediately on start
	c.check()

	ticker := time.NewTicker(c.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.check()
		case <-c.reloadCh:
			ticker.Reset(c.currentInterval())
		case <-c.stopCh:
			return
		}
	}
}

func (c *Checker) currentInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

func (c *Checker) check() {
	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := c.pinger.Ping(ctx)
	c.updateStatus(err)
}

func (c *Checker) updateStatus(pingErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.LastCheck = time.Now()

	if pingErr == nil {
		if c.state.ConsecutiveFailures > 0 {
			slog.Info("database recovered", "failures", c.state.ConsecutiveFailures)
		}
		c.state.Status = StatusHealthy
		c.state.ConsecutiveFailures = 0
		c.state.LastError = ""
	} else {
		c.state.ConsecutiveFailures++
		c.state.LastError = pingErr.Error()
		if c.state.ConsecutiveFailures >= c.failureThreshold {
			if c.state.Status != StatusUnhealthy {
				slog.Warn("database marked unhealthy", "failures", c.state.ConsecutiveFailures, "error", c.state.LastError)
			}
			c.state.Status = StatusUnhealthy
		}
	}

	if c.metrics != nil {
		c.metrics.SetStoreHealth(c.state.Status == StatusHealthy)
	}
}

// GetState returns the current health observation.
func (c *Checker) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsHealthy reports whether the database is usable. Unknown is treated as
// healthy so a fresh process serves traffic before the first check lands.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Status != StatusUnhealthy
}
