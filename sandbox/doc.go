// Package sandbox implements the cooperative scheduler that drives a fixed
// collection of agents concurrently on one logical thread of control.
//
// The Sandbox owns the agents registered at construction time and resumes
// them round robin in registration order. Concurrency is achieved purely
// through the explicit suspension points on core.TaskContext, never through
// parallel execution: one goroutine backs each agent, but only the agent
// holding the scheduling baton runs between suspension points. This removes
// data races on agent memory without locks, which suits the I/O-bound
// workloads (timers, polling) the sandbox targets.
//
// The first unrecovered agent failure terminates the whole run: Run cancels
// the derived context so sibling loops unwind at their next suspension point,
// and propagates the failure to the caller without waiting for them.
package sandbox
