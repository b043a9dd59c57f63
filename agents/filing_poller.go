package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/state"
)

// Store keys published by FilingPoller.
const (
	// KeyFilingsLatest holds the most recently discovered filing.
	KeyFilingsLatest = "filings.latest"
	// KeyFilingsCount holds the total number of distinct filings seen.
	KeyFilingsCount = "filings.count"
)

// Memory keys kept by FilingPoller across cycles.
const (
	memFilingsSeen     = "seen"
	memFilingsFailures = "consecutive_failures"
)

// Filing is a single regulatory filing discovered by a source.
type Filing struct {
	AccessionNumber string    `json:"accession_number"`
	Company         string    `json:"company"`
	Form            string    `json:"form"`
	FiledAt         time.Time `json:"filed_at"`
}

// FilingSource returns the filings currently visible at the upstream feed.
// Successive polls may overlap; the poller deduplicates by accession number.
type FilingSource interface {
	Poll(ctx context.Context) ([]Filing, error)
}

// FilingPollerOptions configures a FilingPoller.
type FilingPollerOptions struct {
	// Interval is the suspension between polls. Zero yields without delay.
	Interval time.Duration

	// MaxFailures is the number of consecutive poll failures tolerated
	// before the poller fails the run.
	MaxFailures int

	// MaxCycles bounds the loop for demos and tests; zero means unbounded.
	MaxCycles int
}

// FilingPoller polls a FilingSource and publishes filings it has not seen
// before into the shared store. The dedupe set lives in the agent's private
// memory, so no other component can race on it.
type FilingPoller struct {
	name   string
	source FilingSource
	store  *state.Store
	opts   FilingPollerOptions
}

// NewFilingPoller constructs a poller.
// Defaults: 30s interval, 3 tolerated consecutive failures, unbounded loop.
func NewFilingPoller(name string, source FilingSource, store *state.Store, optFns ...func(o *FilingPollerOptions)) *FilingPoller {
	opts := FilingPollerOptions{
		Interval:    30 * time.Second,
		MaxFailures: 3,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &FilingPoller{name: name, source: source, store: store, opts: opts}
}

// Name implements core.Agent.
func (p *FilingPoller) Name() string { return p.name }

// Run implements core.Agent. Each cycle polls the source, filters out
// filings already seen, publishes fresh ones as one delta, then sleeps.
func (p *FilingPoller) Run(taskCtx *core.TaskContext) error {
	seen := p.seenSet(taskCtx.Memory)

	for cycle := 0; p.opts.MaxCycles == 0 || cycle < p.opts.MaxCycles; cycle++ {
		filings, err := p.source.Poll(taskCtx.Context)
		if err != nil {
			failures := taskCtx.Memory.Int(memFilingsFailures) + 1
			taskCtx.Memory.Set(memFilingsFailures, failures)

			if failures >= p.opts.MaxFailures {
				return fmt.Errorf("filing poller %s: %d consecutive poll failures: %w", p.name, failures, err)
			}

			taskCtx.LogWarn("filing poll failed agent=%s attempt=%d err=%v", p.name, failures, err)

			if err := taskCtx.Sleep(p.opts.Interval); err != nil {
				return err
			}
			continue
		}

		taskCtx.Memory.Set(memFilingsFailures, 0)

		var fresh []Filing
		for _, f := range filings {
			if _, dup := seen[f.AccessionNumber]; dup {
				continue
			}
			seen[f.AccessionNumber] = struct{}{}
			fresh = append(fresh, f)
		}

		if len(fresh) > 0 {
			delta := map[string]any{
				KeyFilingsLatest: fresh[len(fresh)-1],
				KeyFilingsCount:  len(seen),
			}
			if err := p.store.ApplyDelta(delta); err != nil {
				return fmt.Errorf("filing poller %s: publish filings: %w", p.name, err)
			}
			taskCtx.LogDebug("filings published agent=%s fresh=%d total=%d", p.name, len(fresh), len(seen))
		}

		if err := taskCtx.Sleep(p.opts.Interval); err != nil {
			return err
		}
	}

	return nil
}

// seenSet returns the dedupe set from memory, creating it on first use.
func (p *FilingPoller) seenSet(mem core.Memory) map[string]struct{} {
	if v, ok := mem.Get(memFilingsSeen); ok {
		if set, ok := v.(map[string]struct{}); ok {
			return set
		}
	}
	set := make(map[string]struct{})
	mem.Set(memFilingsSeen, set)
	return set
}
