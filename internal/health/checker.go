// Package health runs periodic checks over the daemon's dependencies:
// the local mirror database, its data directory, and the remote task
// gateway. Results feed the /health endpoint so the dashboard can show
// degraded mode instead of guessing from failed requests.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agora-market/agora/internal/infra/gateway"
	"github.com/agora-market/agora/internal/infra/mirror"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker with the standard checks. A nil gateway
// (pure offline mode) skips the reachability probe.
func NewChecker(store *mirror.Store, dataDir string, gw gateway.RemoteTaskGateway) *Checker {
	checks := []Check{
		{
			Name: "mirror",
			CheckFn: func(ctx context.Context) error {
				return store.Ping()
			},
		},
		{
			Name: "data_dir",
			CheckFn: func(ctx context.Context) error {
				return checkDataDir(dataDir)
			},
		},
	}
	if gw != nil {
		checks = append(checks, Check{
			Name: "gateway",
			CheckFn: func(ctx context.Context) error {
				_, err := gw.ListAvailable(ctx)
				return err
			},
		})
	}
	return &Checker{interval: 60 * time.Second, checks: checks}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
