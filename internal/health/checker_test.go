package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/infra/gateway"
	"github.com/agora-market/agora/internal/infra/mirror"
)

func newTestStore(t *testing.T) (*mirror.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := mirror.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestNewChecker(t *testing.T) {
	store, dir := newTestStore(t)

	c := NewChecker(store, dir, gateway.NewMemory())
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}

	c = NewChecker(store, dir, nil)
	if len(c.checks) != 2 {
		t.Errorf("checks without gateway = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	store, dir := newTestStore(t)

	c := NewChecker(store, dir, gateway.NewMemory())
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	store, dir := newTestStore(t)
	c := NewChecker(store, dir, nil)

	// Before any run, there are no statuses — IsHealthy returns true (vacuously)
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_GatewayOutage(t *testing.T) {
	store, dir := newTestStore(t)
	gw := gateway.NewMemory()
	gw.Seed(domain.Task{OrderID: "o1"})
	gw.SetUnreachable(true)

	c := NewChecker(store, dir, gw)
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false during a gateway outage")
	}
	for _, s := range c.Statuses() {
		if s.Name == "gateway" {
			if s.Healthy {
				t.Error("gateway check should fail during outage")
			}
			if s.Error == "" {
				t.Error("error message should be populated")
			}
		} else if !s.Healthy {
			t.Errorf("check %q should still pass: %s", s.Name, s.Error)
		}
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	store, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte("not a dir"), 0644)

	c := NewChecker(store, path, nil)
	c.runAll(context.Background())

	for _, s := range c.Statuses() {
		if s.Name == "data_dir" && s.Healthy {
			t.Error("data_dir should fail when path is a file")
		}
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	store, dir := newTestStore(t)
	c := NewChecker(store, dir, nil)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()
	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
