package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/infra/events"
	"github.com/agora-market/agora/internal/infra/gateway"
	"github.com/agora-market/agora/internal/infra/mirror"
)

func newTestStore(t *testing.T) *mirror.Store {
	t.Helper()
	store, err := mirror.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T, gw gateway.RemoteTaskGateway) *Engine {
	t.Helper()
	return New(domain.Actor{ID: "partner-1", Role: "delivery"}, gw, newTestStore(t), events.New())
}

func seedOne(gw *gateway.Memory, fee int64) string {
	return gw.Seed(domain.Task{OrderID: "ord-1", PickupLocation: "a", DropLocation: "b", DeliveryFee: fee})
}

// newReadyEngine builds an engine and performs the initial gateway refresh
// so seeded tasks are visible as available.
func newReadyEngine(t *testing.T, gw gateway.RemoteTaskGateway) *Engine {
	t.Helper()
	e := newTestEngine(t, gw)
	e.ListAvailable(context.Background())
	return e
}

// ─── Accept / Complete flow ─────────────────────────────────────────────────

func TestEngine_AcceptThenComplete(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 60)
	e := newTestEngine(t, gw)
	ctx := context.Background()

	if got := len(e.ListAvailable(ctx)); got != 1 {
		t.Fatalf("available = %d, want 1", got)
	}

	task, err := e.Accept(ctx, id)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if task.Status != domain.StatusAssigned {
		t.Errorf("status = %s, want %s", task.Status, domain.StatusAssigned)
	}
	if task.ConfirmationCode == "" {
		t.Error("accepted task has no confirmation code")
	}
	if task.AcceptedAt.IsZero() {
		t.Error("accepted task has no AcceptedAt")
	}

	receipt, err := e.Complete(ctx, id, task.ConfirmationCode)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if receipt.FeeCredited != 60 {
		t.Errorf("fee credited = %d, want 60", receipt.FeeCredited)
	}
	if len(e.Completed()) != 1 || len(e.Ongoing()) != 0 || len(e.ListAvailable(ctx)) != 0 {
		t.Errorf("partitions = %d/%d/%d available/ongoing/completed, want 0/0/1",
			len(e.ListAvailable(ctx)), len(e.Ongoing()), len(e.Completed()))
	}
}

func TestEngine_DeliveredIffCompletedAt(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 50)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	task, _ := e.Accept(ctx, id)
	if !task.CompletedAt.IsZero() {
		t.Error("CompletedAt set before completion")
	}

	receipt, err := e.Complete(ctx, id, task.ConfirmationCode)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	done := receipt.Task
	if done.Status != domain.StatusDelivered || done.CompletedAt.IsZero() {
		t.Errorf("delivered task: status=%s completedAt set=%v", done.Status, !done.CompletedAt.IsZero())
	}
	if err := done.Validate(); err != nil {
		t.Errorf("completed task invalid: %v", err)
	}
}

func TestEngine_TaskInExactlyOnePartition(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 40)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	count := func() int {
		n := 0
		for _, bucket := range [][]domain.Task{e.ListAvailable(ctx), e.Ongoing(), e.Completed()} {
			for _, task := range bucket {
				if task.ID == id {
					n++
				}
			}
		}
		return n
	}

	if got := count(); got != 1 {
		t.Fatalf("task appears in %d partitions before accept, want 1", got)
	}
	task, _ := e.Accept(ctx, id)
	if got := count(); got != 1 {
		t.Fatalf("task appears in %d partitions after accept, want 1", got)
	}
	e.Complete(ctx, id, task.ConfirmationCode)
	if got := count(); got != 1 {
		t.Fatalf("task appears in %d partitions after complete, want 1", got)
	}
}

func TestEngine_CompleteTwiceNoDoubleCredit(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 75)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	task, _ := e.Accept(ctx, id)
	if _, err := e.Complete(ctx, id, task.ConfirmationCode); err != nil {
		t.Fatalf("first Complete() error: %v", err)
	}

	_, err := e.Complete(ctx, id, task.ConfirmationCode)
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("second Complete() = %v, want ErrTaskNotFound", err)
	}
	if got := len(e.Completed()); got != 1 {
		t.Errorf("completed = %d tasks, want 1", got)
	}
}

// ─── Confirmation code ──────────────────────────────────────────────────────

func TestEngine_CompleteWrongCode(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 30)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	task, _ := e.Accept(ctx, id)
	wrong := "0000"
	if wrong == task.ConfirmationCode {
		wrong = "0001"
	}

	_, err := e.Complete(ctx, id, wrong)
	if !errors.Is(err, domain.ErrCodeMismatch) {
		t.Errorf("Complete(wrong code) = %v, want ErrCodeMismatch", err)
	}
	if got := len(e.Ongoing()); got != 1 {
		t.Errorf("ongoing = %d after failed complete, want 1", got)
	}
}

func TestEngine_CompleteEmptyCodeIsMismatchNotNotFound(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 30)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	e.Accept(ctx, id)
	_, err := e.Complete(ctx, id, "")
	if !errors.Is(err, domain.ErrCodeMismatch) {
		t.Errorf("Complete(empty code) = %v, want ErrCodeMismatch", err)
	}
}

// ─── SetStatus ──────────────────────────────────────────────────────────────

func TestEngine_SetStatusProgress(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 30)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	e.Accept(ctx, id)
	for _, s := range []domain.DeliveryStatus{
		domain.StatusPickedUp, domain.StatusOnTheWay, domain.StatusNearDestination,
	} {
		if err := e.SetStatus(ctx, id, s); err != nil {
			t.Fatalf("SetStatus(%s) error: %v", s, err)
		}
	}
	if got := e.Ongoing()[0].Status; got != domain.StatusNearDestination {
		t.Errorf("status = %s, want %s", got, domain.StatusNearDestination)
	}
}

func TestEngine_SetStatusDeliveredRejected(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 30)
	e := newReadyEngine(t, gw)
	ctx := context.Background()

	e.Accept(ctx, id)
	err := e.SetStatus(ctx, id, domain.StatusDelivered)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("SetStatus(DELIVERED) = %v, want ErrInvalidTransition", err)
	}
	// Task must remain in ongoing with its prior status.
	ongoing := e.Ongoing()
	if len(ongoing) != 1 || ongoing[0].Status != domain.StatusAssigned {
		t.Errorf("ongoing after rejected transition = %+v, want 1 ASSIGNED task", ongoing)
	}
}

func TestEngine_SetStatusUnknownTask(t *testing.T) {
	e := newTestEngine(t, gateway.NewMemory())

	err := e.SetStatus(context.Background(), "nope", domain.StatusPickedUp)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("SetStatus(unknown) = %v, want ErrInvalidTransition", err)
	}
}

// ─── Races and arbitration ──────────────────────────────────────────────────

func TestEngine_ConcurrentAcceptOneWinner(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 90)
	ctx := context.Background()

	e1 := New(domain.Actor{ID: "partner-1"}, gw, newTestStore(t), events.New())
	e2 := New(domain.Actor{ID: "partner-2"}, gw, newTestStore(t), events.New())
	e1.ListAvailable(ctx)
	e2.ListAvailable(ctx)

	_, err1 := e1.Accept(ctx, id)
	_, err2 := e2.Accept(ctx, id)

	if err1 != nil {
		t.Fatalf("first Accept() error: %v", err1)
	}
	if !errors.Is(err2, domain.ErrAlreadyAssigned) {
		t.Errorf("second Accept() = %v, want ErrAlreadyAssigned", err2)
	}
	// The loser's visible available set drops the task.
	if got := len(e2.Ongoing()); got != 0 {
		t.Errorf("loser ongoing = %d, want 0", got)
	}
}

func TestEngine_AcceptGatewayWithdrawnTask(t *testing.T) {
	// The task is still in the local cache but the backend has withdrawn
	// it (cancelled order). Accept must not create a local delivery the
	// backend no longer knows about.
	store := newTestStore(t)
	ghost := domain.Task{ID: "ghost", OrderID: "ord-9", Status: domain.StatusAvailable, DeliveryFee: 25}
	if err := store.Set(mirror.KeyAvailable, []domain.Task{ghost}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	e := New(domain.Actor{ID: "partner-1"}, gateway.NewMemory(), store, events.New())
	ctx := context.Background()

	_, err := e.Accept(ctx, "ghost")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("Accept(withdrawn) = %v, want ErrTaskNotFound", err)
	}
	if got := len(e.Ongoing()); got != 0 {
		t.Errorf("ongoing = %d after rejected accept, want 0", got)
	}

	// The stale entry leaves the cached available set too.
	var avail []domain.Task
	store.Get(mirror.KeyAvailable, &avail)
	if len(avail) != 0 {
		t.Errorf("cached available = %+v, want empty", avail)
	}
}

func TestEngine_AcceptUnknownTask(t *testing.T) {
	e := newTestEngine(t, gateway.NewMemory())

	_, err := e.Accept(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Errorf("Accept(unknown) = %v, want ErrAlreadyAssigned", err)
	}
}

// ─── Offline and degradation ────────────────────────────────────────────────

func TestEngine_ListAvailableFallsBackToMirror(t *testing.T) {
	gw := gateway.NewMemory()
	seedOne(gw, 55)
	e := newTestEngine(t, gw)
	ctx := context.Background()

	if got := len(e.ListAvailable(ctx)); got != 1 {
		t.Fatalf("available = %d, want 1", got)
	}

	gw.SetUnreachable(true)
	// Silent degradation: same cached set, no error surfaced.
	if got := len(e.ListAvailable(ctx)); got != 1 {
		t.Errorf("available during outage = %d, want cached 1", got)
	}
}

func TestEngine_OfflineAcceptGeneratesLocalCode(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 65)
	e := newTestEngine(t, gw)
	ctx := context.Background()

	e.ListAvailable(ctx)
	e.GoOffline()

	task, err := e.Accept(ctx, id)
	if err != nil {
		t.Fatalf("offline Accept() error: %v", err)
	}
	if len(task.ConfirmationCode) != 4 {
		t.Errorf("offline code = %q, want 4 digits", task.ConfirmationCode)
	}

	// Whole lifecycle works without the gateway.
	if err := e.SetStatus(ctx, id, domain.StatusOnTheWay); err != nil {
		t.Fatalf("offline SetStatus() error: %v", err)
	}
	if _, err := e.Complete(ctx, id, task.ConfirmationCode); err != nil {
		t.Fatalf("offline Complete() error: %v", err)
	}
}

func TestEngine_RehydratesFromMirror(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 70)
	store := newTestStore(t)
	bus := events.New()
	actor := domain.Actor{ID: "partner-1"}

	e1 := New(actor, gw, store, bus)
	ctx := context.Background()
	e1.ListAvailable(ctx)
	task, err := e1.Accept(ctx, id)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}

	// New session over the same mirror: ongoing work survives.
	e2 := New(actor, gw, store, events.New())
	ongoing := e2.Ongoing()
	if len(ongoing) != 1 || ongoing[0].ID != id {
		t.Fatalf("rehydrated ongoing = %+v, want the accepted task", ongoing)
	}
	if ongoing[0].ConfirmationCode != task.ConfirmationCode {
		t.Error("rehydrated task lost its confirmation code")
	}
}

// ─── Events ─────────────────────────────────────────────────────────────────

func TestEngine_CompletePublishesTaskCompleted(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 60)
	store := newTestStore(t)
	bus := events.New()
	e := New(domain.Actor{ID: "partner-1"}, gw, store, bus)
	ctx := context.Background()

	var got []events.TaskCompleted
	bus.Subscribe(events.TopicTaskCompleted, func(payload any) {
		if ev, ok := payload.(events.TaskCompleted); ok {
			got = append(got, ev)
		}
	})

	e.ListAvailable(ctx)
	task, _ := e.Accept(ctx, id)
	e.Complete(ctx, id, task.ConfirmationCode)

	if len(got) != 1 || got[0].TaskID != id || got[0].DeliveryFee != 60 {
		t.Errorf("TaskCompleted events = %+v, want one carrying id and fee 60", got)
	}
}

// ─── Clock hook ─────────────────────────────────────────────────────────────

func TestEngine_CompletedAtUsesEngineClock(t *testing.T) {
	gw := gateway.NewMemory()
	id := seedOne(gw, 20)
	e := newReadyEngine(t, gw)
	e.GoOffline() // keep the gateway's clock out of the picture
	ctx := context.Background()

	fixed := time.Date(2026, time.March, 14, 15, 9, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return fixed })

	task, err := e.Accept(ctx, id)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if !task.AcceptedAt.Equal(fixed) {
		t.Errorf("AcceptedAt = %v, want %v", task.AcceptedAt, fixed)
	}

	receipt, _ := e.Complete(ctx, id, task.ConfirmationCode)
	if !receipt.Task.CompletedAt.Equal(fixed) {
		t.Errorf("CompletedAt = %v, want %v", receipt.Task.CompletedAt, fixed)
	}
}
