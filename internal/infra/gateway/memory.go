package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-market/agora/internal/domain"
)

// Memory is an in-process gateway used by demo mode and tests. It applies
// the same arbitration the real backend does: the first Accept for a task
// wins, later ones fail with ErrAlreadyAssigned.
type Memory struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	unreach bool
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*domain.Task)}
}

// Seed inserts a task in Available state and returns its id (minted when
// the task has none).
func (m *Memory) Seed(t domain.Task) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = domain.StatusAvailable
	cp := t
	m.tasks[t.ID] = &cp
	return t.ID
}

// SetUnreachable makes every subsequent call fail with
// ErrGatewayUnavailable, simulating a network outage.
func (m *Memory) SetUnreachable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreach = down
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if m.unreach {
		return fmt.Errorf("%w: simulated outage", domain.ErrGatewayUnavailable)
	}
	return nil
}

func (m *Memory) ListAvailable(ctx context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var out []domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.StatusAvailable {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Accept(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return domain.Task{}, err
	}

	t, ok := m.tasks[taskID]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if t.Status != domain.StatusAvailable {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrAlreadyAssigned, taskID)
	}

	t.Status = domain.StatusAssigned
	t.ActorID = actorID
	t.AcceptedAt = time.Now()
	t.ConfirmationCode = NewConfirmationCode()
	return *t, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, taskID string, status domain.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if !status.IsOngoing() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, status)
	}
	t.Status = status
	return nil
}

func (m *Memory) Complete(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	t.Status = domain.StatusDelivered
	t.CompletedAt = time.Now()
	return nil
}

func (m *Memory) ListCompleted(ctx context.Context, actorID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var out []domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.StatusDelivered && t.ActorID == actorID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (m *Memory) GetEarnings(ctx context.Context, actorID string, period EarningsPeriod) (EarningsSummary, error) {
	tasks, err := m.ListCompleted(ctx, actorID)
	if err != nil {
		return EarningsSummary{}, err
	}

	sum := EarningsSummary{Period: period}
	cutoff := periodStart(period, time.Now())
	for _, t := range tasks {
		if !cutoff.IsZero() && t.CompletedAt.Before(cutoff) {
			continue
		}
		sum.Amount += t.DeliveryFee
		sum.Tasks++
	}
	return sum, nil
}

func periodStart(p EarningsPeriod, now time.Time) time.Time {
	switch p {
	case PeriodToday:
		y, mo, d := now.Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	}
	return time.Time{}
}

// NewConfirmationCode mints the 4-digit numeric code the recipient must
// read back to the partner before a task can be marked delivered.
func NewConfirmationCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}

// _ asserts that both implementations satisfy the gateway boundary.
var (
	_ RemoteTaskGateway = (*Memory)(nil)
	_ RemoteTaskGateway = (*HTTPClient)(nil)
)
