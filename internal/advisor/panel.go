package advisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/models"
)

// Panel asks all voters in parallel.
type Panel struct {
	voters  []Voter
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPanel creates a panel. Each Ask gets its own timeout.
func NewPanel(timeout time.Duration, voters ...Voter) *Panel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Panel{
		voters:  voters,
		timeout: timeout,
		logger:  log.With().Str("component", "advisor_panel").Logger(),
	}
}

// IDs returns voter ids in panel order.
func (p *Panel) IDs() []string {
	ids := make([]string, len(p.voters))
	for i, v := range p.voters {
		ids[i] = v.ID()
	}
	return ids
}

// Size returns the number of voters.
func (p *Panel) Size() int {
	return len(p.voters)
}

// Collect returns one vote per voter in panel order. A voter that errors, panics or
// times out yields a failed No vote; collection itself never fails.
func (p *Panel) Collect(ctx context.Context, req Request) []models.Vote {
	votes := make([]models.Vote, len(p.voters))

	var wg sync.WaitGroup
	for i, v := range p.voters {
		wg.Add(1)
		go func(i int, v Voter) {
			defer wg.Done()
			votes[i] = p.ask(ctx, v, req)
		}(i, v)
	}
	wg.Wait()

	return votes
}

type askResult struct {
	resp Response
	err  error
}

func (p *Panel) ask(ctx context.Context, v Voter, req Request) models.Vote {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan askResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- askResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		resp, err := v.Ask(ctx, req)
		done <- askResult{resp: resp, err: err}
	}()

	var res askResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = askResult{err: ctx.Err()}
	}

	vote := models.Vote{
		VoterID:      v.ID(),
		Verdict:      res.resp.Verdict,
		RawResponse:  res.resp.Raw,
		ParsedLevels: res.resp.Levels,
		Latency:      time.Since(start),
	}
	if res.err == nil && vote.Verdict != models.Yes && vote.Verdict != models.No {
		res.err = fmt.Errorf("invalid verdict %q", vote.Verdict)
	}

	logger := p.logger.With().Str("voter", vote.VoterID).Dur("latency", vote.Latency).Logger()
	if res.err != nil {
		vote.Verdict = models.No
		vote.Failed = true
		vote.ParsedLevels = nil
		vote.Error = fmt.Errorf("%w: %v", models.ErrAdvisor, res.err).Error()
		logger.Warn().Err(res.err).Msg("Voter failed, counting as No")
		return vote
	}

	logger.Info().Str("verdict", string(vote.Verdict)).Msg("Vote received")
	return vote
}
