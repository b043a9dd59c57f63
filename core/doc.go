// Package core provides the foundational domain types and execution contexts
// used by AgentSandbox. It defines the core abstractions for:
//
//   - Agents (autonomous units of continuous work with private memory)
//   - TaskContext (scoped execution with explicit cooperative suspension points)
//   - Memory (an agent's private key/value scratchpad)
//   - Signals (the suspension protocol between agent tasks and the scheduler)
//
// The package intentionally keeps implementation concerns (the scheduler
// itself, the observable state store, concrete agents) out of scope, exposing
// small interfaces and plain types so higher packages compose them freely.
package core
