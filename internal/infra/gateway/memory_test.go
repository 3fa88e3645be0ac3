package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/agora-market/agora/internal/domain"
)

func TestMemory_FirstAcceptWins(t *testing.T) {
	gw := NewMemory()
	id := gw.Seed(domain.Task{OrderID: "o1", DeliveryFee: 60})
	ctx := context.Background()

	task, err := gw.Accept(ctx, id, "partner-1")
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if task.ActorID != "partner-1" || task.Status != domain.StatusAssigned {
		t.Errorf("accepted task = %+v, want assigned to partner-1", task)
	}
	if task.ConfirmationCode == "" {
		t.Error("gateway issued no confirmation code")
	}

	_, err = gw.Accept(ctx, id, "partner-2")
	if !errors.Is(err, domain.ErrAlreadyAssigned) {
		t.Errorf("duplicate Accept() = %v, want ErrAlreadyAssigned", err)
	}
}

func TestMemory_ListAvailableExcludesAccepted(t *testing.T) {
	gw := NewMemory()
	id1 := gw.Seed(domain.Task{OrderID: "o1"})
	gw.Seed(domain.Task{OrderID: "o2"})
	ctx := context.Background()

	gw.Accept(ctx, id1, "partner-1")
	tasks, err := gw.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("ListAvailable() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("available = %d, want 1", len(tasks))
	}
}

func TestMemory_Unreachable(t *testing.T) {
	gw := NewMemory()
	gw.Seed(domain.Task{OrderID: "o1"})
	gw.SetUnreachable(true)
	ctx := context.Background()

	_, err := gw.ListAvailable(ctx)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Errorf("ListAvailable() during outage = %v, want ErrGatewayUnavailable", err)
	}

	gw.SetUnreachable(false)
	if _, err := gw.ListAvailable(ctx); err != nil {
		t.Errorf("ListAvailable() after recovery error: %v", err)
	}
}

func TestMemory_UpdateStatusRejectsDelivered(t *testing.T) {
	gw := NewMemory()
	id := gw.Seed(domain.Task{OrderID: "o1"})
	ctx := context.Background()

	gw.Accept(ctx, id, "partner-1")
	err := gw.UpdateStatus(ctx, id, domain.StatusDelivered)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("UpdateStatus(DELIVERED) = %v, want ErrInvalidTransition", err)
	}
}

func TestMemory_EarningsByPeriod(t *testing.T) {
	gw := NewMemory()
	id := gw.Seed(domain.Task{OrderID: "o1", DeliveryFee: 80})
	ctx := context.Background()

	gw.Accept(ctx, id, "partner-1")
	gw.Complete(ctx, id)

	sum, err := gw.GetEarnings(ctx, "partner-1", PeriodToday)
	if err != nil {
		t.Fatalf("GetEarnings() error: %v", err)
	}
	if sum.Amount != 80 || sum.Tasks != 1 {
		t.Errorf("today = %d over %d tasks, want 80 over 1", sum.Amount, sum.Tasks)
	}

	other, _ := gw.GetEarnings(ctx, "partner-2", PeriodToday)
	if other.Amount != 0 {
		t.Errorf("another partner's earnings = %d, want 0", other.Amount)
	}
}

func TestNewConfirmationCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NewConfirmationCode()
		if len(code) != 4 {
			t.Fatalf("code %q is not 4 digits", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit %q", code, c)
			}
		}
	}
}
