// Package agentsandbox provides a high-level façade over the cooperative
// sandbox scheduler and the observable state store, enabling rapid
// construction of multi-agent research pipelines. Most applications interact
// with this package by:
//  1. Creating an AgentSandbox via New() (optionally overriding the store or logger)
//  2. Registering one or more agents (monitor, poller, synthesis, custom)
//  3. Calling Run, which drives every agent loop until completion or first failure
//
// The façade delegates scheduling to sandbox.Sandbox while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger.
package agentsandbox

import (
	"context"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/logging"
	"github.com/hupe1980/agentsandbox/sandbox"
	"github.com/hupe1980/agentsandbox/state"
)

// Options configures the AgentSandbox instance.
type Options struct {
	// Store is the shared observable state store handed to agents and
	// external observers. Defaults to a fresh in-memory store.
	Store *state.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentSandbox is the high-level façade aggregating the scheduler and the
// shared observable store.
type AgentSandbox struct {
	opts   Options
	agents []core.Agent
}

// New creates a new AgentSandbox instance with optional overrides. An unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentSandbox {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = state.New(func(o *state.Options) {
			o.Logger = opts.Logger
		})
	}

	return &AgentSandbox{opts: opts}
}

// Store returns the shared observable state store.
func (s *AgentSandbox) Store() *state.Store { return s.opts.Store }

// RegisterAgent appends an agent to the run order.
func (s *AgentSandbox) RegisterAgent(a core.Agent) { s.agents = append(s.agents, a) }

// Run drives every registered agent under a fresh cooperative scheduler
// until all complete or the first failure. Agents are single-shot, so each
// Run requires freshly constructed agent instances.
func (s *AgentSandbox) Run(ctx context.Context) error {
	sb, err := sandbox.New(s.agents, func(o *sandbox.Options) {
		o.Logger = s.opts.Logger
	})
	if err != nil {
		return err
	}

	return sb.Run(ctx)
}
