// Package domain holds the pure delivery types shared by every layer.
// A Task is one delivery assignment that flows through the engine:
// available → accept → ongoing status updates → code-confirmed completion.
package domain

import (
	"fmt"
	"time"
)

// DeliveryStatus tracks where a task sits in its lifecycle.
type DeliveryStatus string

const (
	StatusAvailable       DeliveryStatus = "AVAILABLE"
	StatusAssigned        DeliveryStatus = "ASSIGNED"
	StatusPickedUp        DeliveryStatus = "PICKED_UP"
	StatusOnTheWay        DeliveryStatus = "ON_THE_WAY"
	StatusNearDestination DeliveryStatus = "NEAR_DESTINATION"
	StatusDelivered       DeliveryStatus = "DELIVERED"
)

// IsOngoing reports whether the status belongs to the ongoing partition
// (accepted by a partner but not yet delivered).
func (s DeliveryStatus) IsOngoing() bool {
	switch s {
	case StatusAssigned, StatusPickedUp, StatusOnTheWay, StatusNearDestination:
		return true
	}
	return false
}

// IsTerminal reports whether the task has reached its final state.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered
}

// ParseStatus converts an API/CLI string into a DeliveryStatus.
func ParseStatus(s string) (DeliveryStatus, error) {
	switch DeliveryStatus(s) {
	case StatusAvailable, StatusAssigned, StatusPickedUp,
		StatusOnTheWay, StatusNearDestination, StatusDelivered:
		return DeliveryStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Task is one delivery assignment.
// DeliveryFee is whole rupees; zero timestamps mean "not set".
type Task struct {
	ID               string         `json:"id"`
	OrderID          string         `json:"order_id"`
	PickupLocation   string         `json:"pickup_location"`
	DropLocation     string         `json:"drop_location"`
	DeliveryFee      int64          `json:"delivery_fee"`
	DistanceKm       float64        `json:"distance_km,omitempty"`
	Status           DeliveryStatus `json:"status"`
	ConfirmationCode string         `json:"confirmation_code,omitempty"`
	ActorID          string         `json:"actor_id,omitempty"`
	AcceptedAt       time.Time      `json:"accepted_at,omitempty"`
	CompletedAt      time.Time      `json:"completed_at,omitempty"`
}

// Validate checks structural invariants that hold regardless of lifecycle
// position: Delivered and CompletedAt must agree, and an accepted task
// must belong to an actor.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.DeliveryFee < 0 {
		return fmt.Errorf("delivery fee must be non-negative, got %d", t.DeliveryFee)
	}
	if t.DistanceKm < 0 {
		return fmt.Errorf("distance must be non-negative, got %.2f", t.DistanceKm)
	}
	delivered := t.Status == StatusDelivered
	if delivered != !t.CompletedAt.IsZero() {
		return fmt.Errorf("task %s: status %s disagrees with completed_at", t.ID, t.Status)
	}
	if t.Status != StatusAvailable && t.ActorID == "" {
		return fmt.Errorf("task %s: status %s requires an actor", t.ID, t.Status)
	}
	return nil
}

// Actor is the current delivery partner identity, provided by the outer
// auth layer and treated as read-only here.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}
