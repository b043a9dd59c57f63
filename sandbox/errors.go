package sandbox

import "errors"

var (
	// ErrNoAgents is returned by New when the agent collection is empty.
	ErrNoAgents = errors.New("sandbox requires at least one agent")

	// ErrDuplicateAgentName is returned by New when two agents share a name.
	ErrDuplicateAgentName = errors.New("duplicate agent name")

	// ErrAlreadyRunning is returned by Run while a run is in progress.
	ErrAlreadyRunning = errors.New("sandbox is already running")

	// ErrTerminated is returned by Run after a previous run has finished.
	// A Sandbox drives its agents at most once.
	ErrTerminated = errors.New("sandbox has terminated")
)
