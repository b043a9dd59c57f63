package core

import (
	"context"
	"time"

	"github.com/hupe1980/agentsandbox/logging"
)

// SignalKind classifies a suspension report delivered to the scheduler.
type SignalKind int

const (
	// SignalYield reports a cooperative yield: the agent is ready to be
	// resumed again on the next scheduler cycle.
	SignalYield SignalKind = iota

	// SignalWait reports that the agent is parked on a timer or external
	// event. The scheduler skips it until a wake notification arrives.
	SignalWait

	// SignalDone reports that the agent's run loop returned. Err carries the
	// failure, or nil for deliberate completion.
	SignalDone
)

// Signal is the message an agent task sends to its scheduler when it
// suspends or completes.
type Signal struct {
	Kind SignalKind
	Err  error
}

// TaskContext is the per-agent execution scope passed to an Agent's Run
// method. It aggregates:
//
//   - The ambient cancellation Context
//   - Identifiers (RunID, Agent info)
//   - The agent's private Memory
//   - The suspension coordination channels owned by the scheduler
//
// Yield, Sleep and Await are the only places an agent gives up control.
// Each observes cancellation, so a cancelled run unwinds agent loops at
// their next suspension point instead of abandoning goroutines blindly.
type TaskContext struct {
	Context context.Context
	RunID   string
	Agent   AgentInfo
	Memory  Memory

	index   int
	suspend chan<- Signal
	resume  <-chan struct{}
	wake    chan<- int

	*loggerAdapter
}

// NewTaskContext constructs a TaskContext bound to the given scheduler
// channels. The wake channel must be buffered by the scheduler so that a
// parked task can always post its readiness without blocking.
func NewTaskContext(
	ctx context.Context,
	runID string,
	agent AgentInfo,
	index int,
	suspend chan<- Signal,
	resume <-chan struct{},
	wake chan<- int,
	logger logging.Logger,
) *TaskContext {
	return &TaskContext{
		Context:       ctx,
		RunID:         runID,
		Agent:         agent,
		Memory:        NewMemory(),
		index:         index,
		suspend:       suspend,
		resume:        resume,
		wake:          wake,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TaskContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TaskContext) Err() error { return tc.Context.Err() }

// Yield suspends the agent and hands control back to the scheduler. The
// agent stays ready and is resumed once per scheduler cycle. Returns the
// context error if the run was cancelled while suspended.
func (tc *TaskContext) Yield() error {
	tc.suspend <- Signal{Kind: SignalYield}
	return tc.WaitForResume()
}

// Sleep suspends the agent for at least d. Control returns to the scheduler
// immediately; the agent is skipped until the timer fires, then resumed on a
// following cycle. A non-positive d degrades to a plain Yield.
func (tc *TaskContext) Sleep(d time.Duration) error {
	if d <= 0 {
		return tc.Yield()
	}

	tc.suspend <- Signal{Kind: SignalWait}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-tc.Context.Done():
		return tc.Context.Err()
	}

	tc.wake <- tc.index

	return tc.WaitForResume()
}

// Await suspends the agent until the given external event channel delivers
// or closes. Like Sleep, the agent is skipped by the scheduler while parked.
func (tc *TaskContext) Await(event <-chan struct{}) error {
	tc.suspend <- Signal{Kind: SignalWait}

	select {
	case <-event:
	case <-tc.Context.Done():
		return tc.Context.Err()
	}

	tc.wake <- tc.index

	return tc.WaitForResume()
}

// WaitForResume blocks until the scheduler grants execution or the run is
// cancelled. Agent code normally never calls this directly; the suspension
// helpers and the scheduler's initial gate do.
func (tc *TaskContext) WaitForResume() error {
	select {
	case <-tc.resume:
		return nil
	case <-tc.Context.Done():
		return tc.Context.Err()
	}
}

// Complete reports loop termination to the scheduler. The sandbox calls this
// once Run returns; a nil err means deliberate completion. While the
// scheduler is live the task's suspend buffer is empty at this point; after
// the run has terminated the buffer may still hold an unread suspension
// signal, in which case the report is dropped since nobody is listening.
func (tc *TaskContext) Complete(err error) {
	select {
	case tc.suspend <- Signal{Kind: SignalDone, Err: err}:
	default:
	}
}
