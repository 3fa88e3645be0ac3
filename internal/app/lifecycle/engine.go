// Package lifecycle implements the delivery-task state machine for one
// logged-in delivery partner:
//
//	Available --Accept--> Assigned --SetStatus--> PickedUp/OnTheWay/NearDestination
//	ongoing --Complete(code)--> Delivered (terminal)
//
// The engine keeps the three task partitions (available, ongoing,
// completed) in memory, mirrors every settled transition to the local
// store, and consults the remote gateway first while online. Gateway
// failures on reads degrade silently to the mirror; gateway failures on
// writes leave the local mutation standing (the original behavior — no
// replay queue).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/infra/events"
	"github.com/agora-market/agora/internal/infra/gateway"
	"github.com/agora-market/agora/internal/infra/metrics"
	"github.com/agora-market/agora/internal/infra/mirror"
)

// CompletionReceipt is what Complete returns on success.
type CompletionReceipt struct {
	Task        domain.Task `json:"task"`
	FeeCredited int64       `json:"fee_credited"`
}

// Engine is one partner's lifecycle session. All operations are
// serialized by a single mutex, matching the one-actor ordering contract.
type Engine struct {
	actor domain.Actor
	gw    gateway.RemoteTaskGateway
	store *mirror.Store
	bus   *events.Broadcaster
	now   func() time.Time

	mu        sync.Mutex
	online    bool
	available []domain.Task
	ongoing   []domain.Task
	completed []domain.Task
}

// New creates an engine for actor and rehydrates the partitions from the
// mirror, so a session survives a restart without the gateway.
func New(actor domain.Actor, gw gateway.RemoteTaskGateway, store *mirror.Store, bus *events.Broadcaster) *Engine {
	e := &Engine{
		actor:  actor,
		gw:     gw,
		store:  store,
		bus:    bus,
		now:    time.Now,
		online: true,
	}

	store.Get(mirror.KeyAvailable, &e.available)
	store.Get(mirror.KeyOngoing, &e.ongoing)
	store.Get(mirror.KeyCompleted, &e.completed)
	metrics.OngoingTasks.Set(float64(len(e.ongoing)))
	return e
}

// SetClock overrides the engine clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// GoOnline re-enables gateway-first operation.
func (e *Engine) GoOnline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = true
}

// GoOffline makes every operation act purely on the local mirror.
// Offline mutations are not queued for later gateway replay.
func (e *Engine) GoOffline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = false
}

// Online reports the current connectivity flag.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// ListAvailable returns the open task set. Online it asks the gateway and
// refreshes the cache; on any gateway failure it returns the last cached
// set unchanged. It never fails the caller.
func (e *Engine) ListAvailable(ctx context.Context) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.online {
		tasks, err := e.gw.ListAvailable(ctx)
		if err != nil {
			metrics.GatewayFailures.Inc()
			log.Printf("[lifecycle] gateway list failed, serving mirror: %v", err)
		} else {
			// Keep tasks this actor already took out of the visible set.
			e.available = e.withoutOngoing(tasks)
			e.persist(mirror.KeyAvailable, e.available)
		}
	}
	return cloneTasks(e.available)
}

// Ongoing returns the tasks this partner is currently delivering.
func (e *Engine) Ongoing() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneTasks(e.ongoing)
}

// Completed returns the partner's delivered tasks.
func (e *Engine) Completed() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneTasks(e.completed)
}

// Accept claims an available task for this partner. First writer wins:
// when online the gateway arbitrates, and its conflict answer surfaces as
// ErrAlreadyAssigned. The returned task carries the confirmation code to
// show the recipient.
func (e *Engine) Accept(ctx context.Context, taskID string) (domain.Task, error) {
	task, err := e.acceptLocked(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	// Published outside the engine lock: subscribers may read partitions.
	e.bus.Publish(events.TopicOngoingUpdated, task)
	return task, nil
}

func (e *Engine) acceptLocked(ctx context.Context, taskID string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := indexOf(e.available, taskID)
	if idx < 0 {
		// Not in the available partition: either never existed here or
		// someone (possibly this partner) already took it.
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrAlreadyAssigned, taskID)
	}

	task := e.available[idx]

	if e.online {
		accepted, err := e.gw.Accept(ctx, taskID, e.actor.ID)
		switch {
		case errors.Is(err, domain.ErrAlreadyAssigned), errors.Is(err, domain.ErrTaskNotFound):
			// Lost the race, or the backend withdrew the task while it
			// sat in our cache. Drop it from the visible set either way.
			e.available = removeAt(e.available, idx)
			e.persist(mirror.KeyAvailable, e.available)
			return domain.Task{}, err
		case err != nil:
			metrics.GatewayFailures.Inc()
			log.Printf("[lifecycle] gateway accept failed, accepting locally: %v", err)
			task.ConfirmationCode = gateway.NewConfirmationCode()
		default:
			task = accepted
		}
	} else {
		task.ConfirmationCode = gateway.NewConfirmationCode()
	}

	task.Status = domain.StatusAssigned
	task.ActorID = e.actor.ID
	if task.AcceptedAt.IsZero() {
		task.AcceptedAt = e.now()
	}

	// Fixed write order: remove from source partition before inserting
	// into the destination, so a partial persistence failure can lose the
	// task from view but never duplicate it.
	e.available = removeAt(e.available, idx)
	e.persist(mirror.KeyAvailable, e.available)
	e.ongoing = append(e.ongoing, task)
	e.persist(mirror.KeyOngoing, e.ongoing)

	metrics.TasksAccepted.Inc()
	metrics.OngoingTasks.Set(float64(len(e.ongoing)))
	return task, nil
}

// SetStatus records progress on an ongoing delivery. Delivered is not
// reachable here — only Complete can close a task.
func (e *Engine) SetStatus(ctx context.Context, taskID string, status domain.DeliveryStatus) error {
	task, err := e.setStatusLocked(ctx, taskID, status)
	if err != nil {
		return err
	}
	e.bus.Publish(events.TopicOngoingUpdated, task)
	return nil
}

func (e *Engine) setStatusLocked(ctx context.Context, taskID string, status domain.DeliveryStatus) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !status.IsOngoing() {
		return domain.Task{}, fmt.Errorf("%w: %s is not an ongoing status", domain.ErrInvalidTransition, status)
	}
	idx := indexOf(e.ongoing, taskID)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("%w: task %s is not in the ongoing set", domain.ErrInvalidTransition, taskID)
	}

	if e.online {
		if err := e.gw.UpdateStatus(ctx, taskID, status); err != nil {
			metrics.GatewayFailures.Inc()
			log.Printf("[lifecycle] gateway status update failed, keeping local: %v", err)
		}
	}

	e.ongoing[idx].Status = status
	e.persist(mirror.KeyOngoing, e.ongoing)
	return e.ongoing[idx], nil
}

// Complete closes a delivery after verifying the confirmation code. The
// code check is the only path into Delivered. On success the fee is
// credited exactly once; completing the same task again reports
// ErrTaskNotFound because it already left the ongoing set.
func (e *Engine) Complete(ctx context.Context, taskID, submittedCode string) (CompletionReceipt, error) {
	receipt, err := e.completeLocked(ctx, taskID, submittedCode)
	if err != nil {
		return CompletionReceipt{}, err
	}
	e.bus.Publish(events.TopicTaskCompleted, events.TaskCompleted{
		TaskID:      receipt.Task.ID,
		DeliveryFee: receipt.FeeCredited,
	})
	return receipt, nil
}

func (e *Engine) completeLocked(ctx context.Context, taskID, submittedCode string) (CompletionReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := indexOf(e.ongoing, taskID)
	if idx < 0 {
		return CompletionReceipt{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	task := e.ongoing[idx]
	if submittedCode == "" || submittedCode != task.ConfirmationCode {
		return CompletionReceipt{}, fmt.Errorf("%w: task %s", domain.ErrCodeMismatch, taskID)
	}

	if e.online {
		if err := e.gw.Complete(ctx, taskID); err != nil {
			metrics.GatewayFailures.Inc()
			log.Printf("[lifecycle] gateway complete failed, completing locally: %v", err)
		}
	}

	task.Status = domain.StatusDelivered
	if task.CompletedAt.IsZero() {
		task.CompletedAt = e.now()
	}

	// Same fixed order as Accept: source partition first.
	e.ongoing = removeAt(e.ongoing, idx)
	e.persist(mirror.KeyOngoing, e.ongoing)
	e.completed = append(e.completed, task)
	e.persist(mirror.KeyCompleted, e.completed)

	metrics.TasksCompleted.Inc()
	metrics.OngoingTasks.Set(float64(len(e.ongoing)))
	return CompletionReceipt{Task: task, FeeCredited: task.DeliveryFee}, nil
}

// Refresh re-reads the available set from the gateway (used by the
// background poller). A no-op while offline.
func (e *Engine) Refresh(ctx context.Context) {
	e.ListAvailable(ctx)
}

// persist mirrors one partition, logging failures instead of propagating
// them: silent loss is the storage policy, silent *swallowing* is not.
func (e *Engine) persist(key string, v any) {
	if err := e.store.Set(key, v); err != nil {
		log.Printf("[lifecycle] %v", err)
	}
}

// withoutOngoing filters tasks this actor already holds out of a
// gateway-fresh available list.
func (e *Engine) withoutOngoing(tasks []domain.Task) []domain.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if indexOf(e.ongoing, t.ID) < 0 && indexOf(e.completed, t.ID) < 0 {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt(tasks []domain.Task, i int) []domain.Task {
	return append(tasks[:i:i], tasks[i+1:]...)
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	return append([]domain.Task(nil), tasks...)
}
