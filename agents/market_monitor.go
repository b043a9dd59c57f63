package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/state"
)

// Store keys published by MarketMonitor.
const (
	// KeyMarketPrefix prefixes per-symbol quote entries ("market.AAPL").
	KeyMarketPrefix = "market."
	// KeyMarketUpdatedAt holds the time of the last successful quote merge.
	KeyMarketUpdatedAt = "market.updated_at"
)

// Memory keys kept by MarketMonitor across cycles.
const (
	memMarketCycles   = "cycles"
	memMarketFailures = "consecutive_failures"
)

// Quote is a single observed price for a tracked symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// QuoteSource supplies current quotes for a set of symbols. Implementations
// may block on network I/O; the monitor holds the scheduling baton for the
// duration of a fetch, so sources should honor ctx deadlines.
type QuoteSource interface {
	Fetch(ctx context.Context, symbols []string) ([]Quote, error)
}

// MarketMonitorOptions configures a MarketMonitor.
type MarketMonitorOptions struct {
	// Interval is the suspension between polling cycles. Zero yields without
	// delay, which is mostly useful in tests.
	Interval time.Duration

	// MaxFailures is the number of consecutive fetch failures tolerated
	// before the monitor fails the run.
	MaxFailures int

	// MaxCycles bounds the loop for demos and tests; zero means unbounded.
	MaxCycles int
}

// MarketMonitor polls a QuoteSource on an interval and merges fresh quotes
// into the shared store under per-symbol keys. Transient source failures are
// tolerated up to MaxFailures in a row, counted in private memory.
type MarketMonitor struct {
	name    string
	source  QuoteSource
	store   *state.Store
	symbols []string
	opts    MarketMonitorOptions
}

// NewMarketMonitor constructs a monitor for the given symbols.
// Defaults: 15s interval, 3 tolerated consecutive failures, unbounded loop.
func NewMarketMonitor(name string, source QuoteSource, store *state.Store, symbols []string, optFns ...func(o *MarketMonitorOptions)) *MarketMonitor {
	opts := MarketMonitorOptions{
		Interval:    15 * time.Second,
		MaxFailures: 3,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &MarketMonitor{name: name, source: source, store: store, symbols: symbols, opts: opts}
}

// Name implements core.Agent.
func (m *MarketMonitor) Name() string { return m.name }

// Run implements core.Agent. Each cycle fetches quotes, merges them into the
// store as one atomic delta, then sleeps for the configured interval.
func (m *MarketMonitor) Run(taskCtx *core.TaskContext) error {
	for cycle := 0; m.opts.MaxCycles == 0 || cycle < m.opts.MaxCycles; cycle++ {
		quotes, err := m.source.Fetch(taskCtx.Context, m.symbols)
		if err != nil {
			failures := taskCtx.Memory.Int(memMarketFailures) + 1
			taskCtx.Memory.Set(memMarketFailures, failures)

			if failures >= m.opts.MaxFailures {
				return fmt.Errorf("market monitor %s: %d consecutive fetch failures: %w", m.name, failures, err)
			}

			taskCtx.LogWarn("quote fetch failed agent=%s attempt=%d err=%v", m.name, failures, err)

			if err := taskCtx.Sleep(m.opts.Interval); err != nil {
				return err
			}
			continue
		}

		taskCtx.Memory.Set(memMarketFailures, 0)

		delta := make(map[string]any, len(quotes)+1)
		for _, q := range quotes {
			delta[KeyMarketPrefix+q.Symbol] = q
		}
		delta[KeyMarketUpdatedAt] = time.Now().UTC()

		if err := m.store.ApplyDelta(delta); err != nil {
			return fmt.Errorf("market monitor %s: publish quotes: %w", m.name, err)
		}

		taskCtx.Memory.Set(memMarketCycles, cycle+1)
		taskCtx.LogDebug("quotes published agent=%s symbols=%d cycle=%d", m.name, len(quotes), cycle+1)

		if err := taskCtx.Sleep(m.opts.Interval); err != nil {
			return err
		}
	}

	return nil
}
