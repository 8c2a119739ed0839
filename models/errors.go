package models

import "errors"

// Error taxonomy shared by the pipeline components. Components wrap these with
// fmt.Errorf("...: %w") so callers can branch with errors.Is.
var (
	// ErrFetch means market data is unavailable; the cycle is skipped.
	ErrFetch = errors.New("market data unavailable")
	// ErrAdvisor means a single voter failed; its vote is downgraded to No.
	ErrAdvisor = errors.New("advisor failed")
	// ErrRiskReward means the reconciled levels fail the risk/reward gate.
	ErrRiskReward = errors.New("risk/reward violation")
	// ErrDuplicate means the candidate equals the last committed proposal.
	ErrDuplicate = errors.New("duplicate signal")
	// ErrPersistence means the state store could not be written; the cycle fails.
	ErrPersistence = errors.New("persistence failure")
)
