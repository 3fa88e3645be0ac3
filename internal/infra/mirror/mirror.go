// Package mirror implements the Local Mirror Store: a SQLite-backed
// key-value cache of the task partitions and payout ledger. It is the
// fallback source of truth when the remote gateway is unreachable, so the
// dashboard can always render from local state alone.
//
// Contract: Get never fails — a missing key or a parse failure leaves the
// caller's default in place. Set is best-effort; the engine logs failures
// and carries on with its in-memory state.
// Uses WAL mode for concurrent reads and crash-safe writes.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/agora-market/agora/internal/domain"
)

// Well-known collection keys. The layout is carried over from the original
// browser storage so exported state stays compatible.
const (
	KeyAvailable = "availableTasks"
	KeyOngoing   = "ongoingDeliveries"
	KeyCompleted = "agora_completed_tasks"
	KeyPayouts   = "agora_payouts"
	KeyEarnings  = "agora_earnings"
)

// Store wraps a SQLite connection holding one mirror table.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[string][]watcher
	ownRev   map[string]int64
	stopPoll context.CancelFunc
	pollWG   sync.WaitGroup
}

type watcher struct {
	id string
	fn func()
}

// Open creates or opens the mirror database at dir/mirror.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "mirror.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:       db,
		watchers: make(map[string][]watcher),
		ownRev:   make(map[string]int64),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close stops the watch poller and shuts down the database.
func (s *Store) Close() error {
	s.mu.Lock()
	stop := s.stopPoll
	s.stopPoll = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		s.pollWG.Wait()
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS mirror (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			revision   INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mirror_updated ON mirror(updated_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Get decodes the JSON value stored under key into out. It returns false
// when the key is absent or the stored value does not parse, leaving out
// untouched so the caller's default survives.
func (s *Store) Get(key string, out any) bool {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM mirror WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

// Set serializes v as JSON and persists it under key, bumping the revision
// counter so external watchers can observe the change. The revision this
// write produced is remembered so our own watchers do not fire on it.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrPersistence, key, err)
	}
	var rev int64
	err = s.db.QueryRow(
		`INSERT INTO mirror (key, value, revision, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			revision=mirror.revision+1,
			updated_at=excluded.updated_at
		 RETURNING revision`,
		key, string(raw), time.Now().Unix(),
	).Scan(&rev)
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, key, err)
	}

	s.mu.Lock()
	s.ownRev[key] = rev
	s.mu.Unlock()
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM mirror WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}

// Revision returns the current revision counter for key (0 if absent).
func (s *Store) Revision(key string) int64 {
	var rev int64
	_ = s.db.QueryRow(`SELECT revision FROM mirror WHERE key = ?`, key).Scan(&rev)
	return rev
}

// ─── External-change watching ───────────────────────────────────────────────
// Another process (or another window onto the same data dir) may write the
// mirror. Watch is the analogue of the browser storage event: it polls the
// revision counter and fires the callback when the key changes underneath us.

// WatchInterval is how often watched keys are polled for external changes.
const WatchInterval = time.Second

// Watch registers fn to run when key's revision changes. Writes made
// through this Store handle do not fire its own watchers — only another
// handle's (or process's) writes do. It returns an unsubscribe func. The
// first registration starts the background poller.
func (s *Store) Watch(key string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newWatcherID()
	s.watchers[key] = append(s.watchers[key], watcher{id: id, fn: fn})

	if s.stopPoll == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopPoll = cancel
		s.pollWG.Add(1)
		go s.pollLoop(ctx)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[key]
		for i, w := range ws {
			if w.id == id {
				s.watchers[key] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
	}
}

func newWatcherID() string {
	return uuid.NewString()
}

func (s *Store) pollLoop(ctx context.Context) {
	defer s.pollWG.Done()

	last := make(map[string]int64)
	ticker := time.NewTicker(WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		keys := make([]string, 0, len(s.watchers))
		for k, ws := range s.watchers {
			if len(ws) > 0 {
				keys = append(keys, k)
			}
		}
		s.mu.Unlock()

		for _, k := range keys {
			rev := s.Revision(k)
			prev, seen := last[k]
			last[k] = rev
			if !seen || rev == prev {
				continue
			}

			s.mu.Lock()
			own := s.ownRev[k]
			ws := append([]watcher(nil), s.watchers[k]...)
			s.mu.Unlock()
			if rev == own {
				// Our own Set produced this revision; only writes from
				// another handle count as external changes.
				continue
			}
			for _, w := range ws {
				w.fn()
			}
		}
	}
}
