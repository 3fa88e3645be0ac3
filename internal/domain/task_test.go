package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{
		"AVAILABLE", "ASSIGNED", "PICKED_UP",
		"ON_THE_WAY", "NEAR_DESTINATION", "DELIVERED",
	} {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Errorf("ParseStatus(%q) error: %v", raw, err)
		}
		if string(got) != raw {
			t.Errorf("ParseStatus(%q) = %q", raw, got)
		}
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	for _, raw := range []string{"", "delivered", "CANCELLED", "IN_TRANSIT"} {
		if _, err := ParseStatus(raw); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("ParseStatus(%q) = %v, want ErrUnknownStatus", raw, err)
		}
	}
}

func TestIsOngoing(t *testing.T) {
	ongoing := map[DeliveryStatus]bool{
		StatusAvailable:       false,
		StatusAssigned:        true,
		StatusPickedUp:        true,
		StatusOnTheWay:        true,
		StatusNearDestination: true,
		StatusDelivered:       false,
	}
	for status, want := range ongoing {
		if got := status.IsOngoing(); got != want {
			t.Errorf("%s.IsOngoing() = %v, want %v", status, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := Task{ID: "t1", OrderID: "o1", DeliveryFee: 60, Status: StatusAvailable}
	if err := base.Validate(); err != nil {
		t.Errorf("available task rejected: %v", err)
	}

	assigned := base
	assigned.Status = StatusAssigned
	if err := assigned.Validate(); err == nil {
		t.Error("assigned task without actor passed validation")
	}
	assigned.ActorID = "partner-1"
	if err := assigned.Validate(); err != nil {
		t.Errorf("assigned task with actor rejected: %v", err)
	}
}

func TestValidate_DeliveredNeedsCompletedAt(t *testing.T) {
	task := Task{ID: "t1", Status: StatusDelivered, ActorID: "partner-1"}
	if err := task.Validate(); err == nil {
		t.Error("delivered task without completed_at passed validation")
	}
	task.CompletedAt = time.Now()
	if err := task.Validate(); err != nil {
		t.Errorf("delivered task with completed_at rejected: %v", err)
	}

	stale := Task{ID: "t2", Status: StatusOnTheWay, ActorID: "partner-1", CompletedAt: time.Now()}
	if err := stale.Validate(); err == nil {
		t.Error("ongoing task with completed_at passed validation")
	}
}

func TestValidate_NegativeAmounts(t *testing.T) {
	task := Task{ID: "t1", Status: StatusAvailable, DeliveryFee: -1}
	if err := task.Validate(); err == nil {
		t.Error("negative fee passed validation")
	}
	task = Task{ID: "t1", Status: StatusAvailable, DistanceKm: -0.5}
	if err := task.Validate(); err == nil {
		t.Error("negative distance passed validation")
	}
}
