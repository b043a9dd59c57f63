package core

// Agent defines the single capability every unit of work in the sandbox
// must implement.
//
// Agents are autonomous units of continuous work. Each owns a name (unique
// within one sandbox run), a private Memory, and an unbounded loop entered
// through Run. Concurrency between agents is purely cooperative: the
// scheduler resumes one agent at a time, and control changes hands only at
// the explicit suspension points on TaskContext (Yield, Sleep, Await).
// Between suspension points exactly one agent body executes, so an agent
// never needs to lock its own memory.
//
// Run must not return under normal operation. Returning nil signals
// deliberate completion and removes the agent from the scheduler rotation;
// returning an error is fatal for the whole run.
//
// Implementations must:
//   - Suspend at least once per loop cycle, or they starve every other agent
//   - Check cancellation at every suspension point (the TaskContext helpers
//     do this when used)
//   - Treat Run as single-shot: it is called at most once per instance
type Agent interface {
	Name() string
	Run(taskCtx *TaskContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & logs.
// Name is the external identifier; Type categorizes implementation (e.g. "monitor", "worker").
type AgentInfo struct{ Name, Type string }
