// Package advisor collects Yes/No opinions on a trade proposal from independent voters.
package advisor

import (
	"context"

	"github.com/Alias1177/SignalBot/models"
)

// Request is what every voter sees.
type Request struct {
	Proposal models.SignalProposal
	// Recent is the tail of the candle window, oldest first.
	Recent   []models.Candle
	Caption  string
	ChartRef string
}

// Response is a voter's answer. Levels is nil when the voter did not propose any.
type Response struct {
	Verdict models.Verdict
	Raw     string
	Levels  *models.Levels
}

// Voter is one independent opinion source.
type Voter interface {
	ID() string
	Ask(ctx context.Context, req Request) (Response, error)
}
