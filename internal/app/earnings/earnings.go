// Package earnings derives the partner's earnings read model from the
// completed-task set and the payout ledger. The snapshot is a pure
// function of those two inputs and the clock; it is memoized and
// invalidated whenever either input changes.
package earnings

import (
	"log"
	"sync"
	"time"

	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/infra/events"
	"github.com/agora-market/agora/internal/infra/metrics"
	"github.com/agora-market/agora/internal/infra/mirror"
)

// TaskSource yields the completed-task set the snapshot sums over.
type TaskSource interface {
	Completed() []domain.Task
}

// Service computes earnings snapshots and owns the payout ledger.
type Service struct {
	tasks TaskSource
	store *mirror.Store
	bus   *events.Broadcaster
	now   func() time.Time

	mu      sync.Mutex
	payouts []domain.Payout
	memo    *domain.EarningsSnapshot
	memoDay string
}

// NewService loads the payout ledger from the mirror and subscribes to
// task completions so the memoized snapshot stays fresh.
func NewService(tasks TaskSource, store *mirror.Store, bus *events.Broadcaster) *Service {
	s := &Service{
		tasks: tasks,
		store: store,
		bus:   bus,
		now:   time.Now,
	}
	store.Get(mirror.KeyPayouts, &s.payouts)

	bus.Subscribe(events.TopicTaskCompleted, func(any) {
		s.invalidate()
		s.publish()
	})
	return s
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Snapshot returns the current earnings view, recomputing only when the
// inputs (or the calendar day) have changed since the last call.
func (s *Service) Snapshot() domain.EarningsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.now().Format("2006-01-02")
	if s.memo != nil && s.memoDay == day {
		return *s.memo
	}

	snap := Compute(s.tasks.Completed(), s.payouts, s.now())
	s.memo = &snap
	s.memoDay = day

	metrics.EarningsAllTime.Set(float64(snap.AllTime))
	metrics.PendingBalance.Set(float64(snap.PendingBalance))

	// Cache the total for offline dashboards.
	if err := s.store.Set(mirror.KeyEarnings, snap); err != nil {
		log.Printf("[earnings] %v", err)
	}
	return snap
}

// RecordPayout appends a transfer to the ledger and persists it.
func (s *Service) RecordPayout(amount int64, date time.Time) domain.Payout {
	s.mu.Lock()
	p := domain.Payout{Amount: amount, Date: date}
	s.payouts = append(s.payouts, p)
	if err := s.store.Set(mirror.KeyPayouts, s.payouts); err != nil {
		log.Printf("[earnings] %v", err)
	}
	s.memo = nil
	s.mu.Unlock()

	s.publish()
	return p
}

// Payouts returns a copy of the ledger, newest last.
func (s *Service) Payouts() []domain.Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payout(nil), s.payouts...)
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.memo = nil
	s.mu.Unlock()
}

func (s *Service) publish() {
	s.bus.Publish(events.TopicEarningsUpdated, s.Snapshot())
}

// Compute partitions completed tasks by calendar day, ISO week, and
// calendar month relative to now, and settles the payout balance.
// Tasks with no CompletedAt are excluded from the time buckets but still
// count toward AllTime.
func Compute(completed []domain.Task, payouts []domain.Payout, now time.Time) domain.EarningsSnapshot {
	var snap domain.EarningsSnapshot

	nowYear, nowMonth, nowDay := now.Date()
	nowISOYear, nowISOWeek := now.ISOWeek()

	for _, t := range completed {
		snap.AllTime += t.DeliveryFee
		if t.CompletedAt.IsZero() {
			continue
		}

		y, m, d := t.CompletedAt.Date()
		if y == nowYear && m == nowMonth && d == nowDay {
			snap.Today += t.DeliveryFee
		}
		if iy, iw := t.CompletedAt.ISOWeek(); iy == nowISOYear && iw == nowISOWeek {
			snap.ThisWeek += t.DeliveryFee
		}
		if y == nowYear && m == nowMonth {
			snap.ThisMonth += t.DeliveryFee
		}
	}

	for _, p := range payouts {
		snap.Transferred += p.Amount
	}
	snap.PendingBalance = snap.AllTime - snap.Transferred
	if snap.PendingBalance < 0 {
		snap.PendingBalance = 0
	}
	return snap
}
