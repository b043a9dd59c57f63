package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives scheduler lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// runState tracks the sandbox lifecycle: not started, running, terminated.
type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateTerminated
)

// taskStatus tracks where an agent task is within the scheduler rotation.
type taskStatus int

const (
	statusReady taskStatus = iota
	statusWaiting
	statusDone
)

// task pairs an agent with its scheduling channels.
type task struct {
	agent   core.Agent
	taskCtx *core.TaskContext
	resume  chan struct{}
	suspend chan core.Signal
	status  taskStatus
}

// Sandbox drives an ordered, fixed collection of agents under a single
// cooperative scheduler. Construct with New, then call Run exactly once.
type Sandbox struct {
	agents []core.Agent
	logger logging.Logger

	mu    sync.Mutex
	state runState
}

// New constructs a Sandbox over the given agents. The collection must be
// non-empty and agent names must be unique; registration order defines the
// resumption order among ready agents.
func New(agents []core.Agent, optFns ...func(o *Options)) (*Sandbox, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}

	seen := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgentName, a.Name())
		}
		seen[a.Name()] = struct{}{}
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Sandbox{agents: agents, logger: opts.Logger}, nil
}

// Run starts every agent's loop and schedules them cooperatively until all
// complete or one fails. The first failure is propagated immediately: the
// derived context is cancelled so sibling loops unwind at their next
// suspension point, and Run returns without waiting for them.
//
// Fairness is round robin over ready agents in registration order, one
// resumption per cycle. Agents parked on timers or external events are
// skipped until their wake fires; when no agent is ready the scheduler
// blocks until a wake or cancellation. An agent that never suspends starves
// all others.
func (s *Sandbox) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case stateTerminated:
		s.mu.Unlock()
		return ErrTerminated
	}
	s.state = stateRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = stateTerminated
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := core.NewID()
	s.logger.Debug("sandbox run starting run_id=%s agents=%d", runID, len(s.agents))

	// The wake channel is shared; capacity covers one outstanding wake per
	// task so parked tasks never block posting readiness.
	wake := make(chan int, len(s.agents))

	tasks := make([]*task, len(s.agents))
	for i, a := range s.agents {
		t := &task{
			agent:   a,
			resume:  make(chan struct{}),
			suspend: make(chan core.Signal, 1),
			status:  statusReady,
		}
		t.taskCtx = core.NewTaskContext(
			ctx,
			runID,
			core.AgentInfo{Name: a.Name(), Type: "agent"},
			i,
			t.suspend,
			t.resume,
			wake,
			s.logger,
		)
		tasks[i] = t
	}

	// One goroutine per agent, gated so nothing runs before its first grant.
	for _, t := range tasks {
		go func(t *task) {
			if err := t.taskCtx.WaitForResume(); err != nil {
				t.taskCtx.Complete(err)
				return
			}
			t.taskCtx.Complete(t.agent.Run(t.taskCtx))
		}(t)
	}

	live := len(tasks)
	for live > 0 {
		granted := false

		for _, t := range tasks {
			if t.status != statusReady {
				continue
			}
			granted = true

			// Hand the baton to the task, then wait for its next suspension
			// point or completion. Only this task executes in between.
			select {
			case t.resume <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}

			var sig core.Signal
			select {
			case sig = <-t.suspend:
			case <-ctx.Done():
				return ctx.Err()
			}

			switch sig.Kind {
			case core.SignalYield:
				// Stays ready for the next cycle.
			case core.SignalWait:
				t.status = statusWaiting
			case core.SignalDone:
				t.status = statusDone
				live--
				if sig.Err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(sig.Err, ctxErr) {
						return ctxErr
					}
					s.logger.Error("agent failed, terminating run run_id=%s agent=%s err=%v", runID, t.agent.Name(), sig.Err)
					cancel()
					return fmt.Errorf("agent %s failed: %w", t.agent.Name(), sig.Err)
				}
				s.logger.Debug("agent completed run_id=%s agent=%s", runID, t.agent.Name())
			}

			drainWakes(tasks, wake)
		}

		if !granted {
			// Every live agent is parked; block until one wakes.
			select {
			case idx := <-wake:
				if tasks[idx].status == statusWaiting {
					tasks[idx].status = statusReady
				}
			case <-ctx.Done():
				return ctx.Err()
			}
			drainWakes(tasks, wake)
		}
	}

	s.logger.Debug("sandbox run completed run_id=%s", runID)

	return nil
}

// drainWakes moves every task with a pending wake notification back to the
// ready set without blocking.
func drainWakes(tasks []*task, wake <-chan int) {
	for {
		select {
		case idx := <-wake:
			if tasks[idx].status == statusWaiting {
				tasks[idx].status = statusReady
			}
		default:
			return
		}
	}
}
