// Package agents contains the concrete agent variants shipped with
// AgentSandbox: a market data monitor, a regulatory filing poller and an
// LLM-backed synthesis worker. Each implements core.Agent over a small
// capability interface (QuoteSource, FilingSource, model.Model) so callers
// plug in real transports while the package stays network-free and testable.
//
// All three follow the same loop shape: do one unit of work, publish into
// the shared state.Store, track counters in private Memory, then suspend via
// TaskContext.Sleep so sibling agents get the baton.
package agents
