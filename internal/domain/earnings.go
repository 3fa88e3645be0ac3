package domain

import "time"

// Payout is one transfer out of the partner's pending balance.
// The ledger is append-only.
type Payout struct {
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
}

// EarningsSnapshot is the derived earnings read model. It is recomputed
// from the completed-task set and payout ledger, never mutated directly.
type EarningsSnapshot struct {
	Today          int64 `json:"today"`
	ThisWeek       int64 `json:"this_week"`
	ThisMonth      int64 `json:"this_month"`
	AllTime        int64 `json:"all_time"`
	Transferred    int64 `json:"transferred"`
	PendingBalance int64 `json:"pending_balance"`
}
