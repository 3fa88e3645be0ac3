// Package gateway defines the remote task gateway boundary: the backend
// API the engine consults for listing, accepting, updating, and completing
// deliveries. The backend itself is external; this package holds the
// interface, an HTTP client for it, and an in-memory gateway used by demo
// mode and the test suite.
package gateway

import (
	"context"

	"github.com/agora-market/agora/internal/domain"
)

// EarningsPeriod selects an aggregation window for GetEarnings.
type EarningsPeriod string

const (
	PeriodToday   EarningsPeriod = "today"
	PeriodWeek    EarningsPeriod = "week"
	PeriodMonth   EarningsPeriod = "month"
	PeriodAllTime EarningsPeriod = "all"
)

// EarningsSummary is the gateway's aggregated earnings answer.
type EarningsSummary struct {
	Period EarningsPeriod `json:"period"`
	Amount int64          `json:"amount"`
	Tasks  int            `json:"tasks"`
}

// RemoteTaskGateway is the backend API boundary. Implementations map
// transport failures to domain.ErrGatewayUnavailable and accept conflicts
// to domain.ErrAlreadyAssigned so the engine can classify without knowing
// the transport.
type RemoteTaskGateway interface {
	// ListAvailable returns tasks no partner has claimed yet.
	ListAvailable(ctx context.Context) ([]domain.Task, error)

	// Accept claims a task for actorID. The gateway is the arbiter of
	// who accepted first: a duplicate claim fails with ErrAlreadyAssigned.
	// The returned task carries the gateway-issued confirmation code.
	Accept(ctx context.Context, taskID, actorID string) (domain.Task, error)

	// UpdateStatus records an ongoing-status change.
	UpdateStatus(ctx context.Context, taskID string, status domain.DeliveryStatus) error

	// Complete marks the task delivered after the engine has verified the
	// confirmation code locally.
	Complete(ctx context.Context, taskID string) error

	// ListCompleted returns the actor's delivered tasks.
	ListCompleted(ctx context.Context, actorID string) ([]domain.Task, error)

	// GetEarnings returns the backend's aggregated earnings for a period.
	GetEarnings(ctx context.Context, actorID string, period EarningsPeriod) (EarningsSummary, error)
}
