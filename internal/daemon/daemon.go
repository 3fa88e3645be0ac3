package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agora-market/agora/internal/api"
	"github.com/agora-market/agora/internal/app/earnings"
	"github.com/agora-market/agora/internal/app/lifecycle"
	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/health"
	"github.com/agora-market/agora/internal/infra/events"
	"github.com/agora-market/agora/internal/infra/gateway"
	_ "github.com/agora-market/agora/internal/infra/metrics" // Register Prometheus metrics
	"github.com/agora-market/agora/internal/infra/mirror"
)

// Daemon is the core Agora runtime. It wires together the mirror store,
// gateway, lifecycle engine, earnings service, and API server.
type Daemon struct {
	Config   Config
	Store    *mirror.Store
	Gateway  gateway.RemoteTaskGateway
	Bus      *events.Broadcaster
	Engine   *lifecycle.Engine
	Earnings *earnings.Service
	Server   *api.Server
	Health   *health.Checker

	cancel context.CancelFunc
}

// New creates a Daemon from the on-disk config.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. Without a
// gateway base URL it runs against a seeded in-memory gateway (demo mode).
func NewWithConfig(cfg Config) (*Daemon, error) {
	dir := cfg.Storage.Dir
	if dir == "" {
		dir = agoraHome()
	}
	store, err := mirror.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open mirror store: %w", err)
	}

	var gw gateway.RemoteTaskGateway
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.GatewayTimeout())
	} else {
		log.Printf("[daemon] no gateway configured, using in-memory demo gateway")
		gw = seedDemoGateway()
	}

	actor := domain.Actor{ID: cfg.Actor.ID, Role: "delivery", Name: cfg.Actor.Name}
	bus := events.New()
	engine := lifecycle.New(actor, gw, store, bus)
	earn := earnings.NewService(engine, store, bus)

	checker := health.NewChecker(store, dir, gw)

	srv := api.NewServer(engine, earn, actor)
	srv.SetEarningsHub(api.NewEarningsHub(bus))
	srv.SetHealthChecker(checker)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:   cfg,
		Store:    store,
		Gateway:  gw,
		Bus:      bus,
		Engine:   engine,
		Earnings: earn,
		Server:   srv,
		Health:   checker,
	}, nil
}

// Serve starts the HTTP server plus the background refresh poller and
// blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Periodic gateway refresh (the original polls every 15 seconds).
	go d.pollLoop(ctx)
	go d.Health.Run(ctx)

	// Re-read partitions when another process writes the mirror.
	unwatch := d.Store.Watch(mirror.KeyAvailable, func() {
		d.Engine.Refresh(ctx)
	})
	defer unwatch()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // Long for SSE
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	fmt.Printf("Agora delivery engine on http://%s\n", addr)
	if d.Config.API.Metrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}

func (d *Daemon) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(d.Config.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Engine.Refresh(ctx)
		}
	}
}

// seedDemoGateway fills the in-memory gateway with a few open tasks so
// the dashboard has something to show out of the box. Ids are fixed so
// successive CLI invocations (each with a fresh gateway) see the same
// tasks.
func seedDemoGateway() *gateway.Memory {
	gw := gateway.NewMemory()
	seeds := []domain.Task{
		{ID: "demo-1001", OrderID: "ORD-1001", PickupLocation: "Spice Garden, MG Road", DropLocation: "Sunrise Apartments, Sector 12", DeliveryFee: 60, DistanceKm: 3.2},
		{ID: "demo-1002", OrderID: "ORD-1002", PickupLocation: "Biryani House, Old Town", DropLocation: "Tech Park Tower B", DeliveryFee: 85, DistanceKm: 5.8},
		{ID: "demo-1003", OrderID: "ORD-1003", PickupLocation: "Green Basket Grocers", DropLocation: "Lakeview Residency", DeliveryFee: 45, DistanceKm: 2.1},
	}
	for _, t := range seeds {
		gw.Seed(t)
	}
	return gw
}
