package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/agentsandbox/core"
	"github.com/hupe1980/agentsandbox/model"
	"github.com/hupe1980/agentsandbox/state"
)

// Store keys published by SynthesisWorker.
const (
	// KeyReportSummary holds the latest generated digest text.
	KeyReportSummary = "report.summary"
	// KeyReportRevision holds the store revision the digest was built from.
	KeyReportRevision = "report.revision"
	// KeyReportGeneratedAt holds the time the digest was generated.
	KeyReportGeneratedAt = "report.generated_at"
)

// Memory keys kept by SynthesisWorker across cycles.
const (
	memReportLastRevision = "last_revision"
	memReportDigests      = "digests"
)

// defaultInstructions steer the model toward a compact research digest.
const defaultInstructions = "You are a research assistant. Summarize the " +
	"observed market and filing state into a short digest for an analyst. " +
	"Be factual and concise."

// SynthesisWorkerOptions configures a SynthesisWorker.
type SynthesisWorkerOptions struct {
	// Interval is the suspension between change checks. Zero yields without delay.
	Interval time.Duration

	// Instructions overrides the system prompt sent with every request.
	Instructions string

	// MaxCycles bounds the loop for demos and tests; zero means unbounded.
	MaxCycles int
}

// SynthesisWorker watches the shared store and, whenever its revision has
// advanced since the last digest, asks a model.Model to summarize the full
// snapshot and publishes the result back into the store. Its own writes are
// excluded from change detection, so it never feeds on its own output.
type SynthesisWorker struct {
	name  string
	model model.Model
	store *state.Store
	opts  SynthesisWorkerOptions
}

// NewSynthesisWorker constructs a worker.
// Defaults: 60s interval, built-in digest instructions, unbounded loop.
func NewSynthesisWorker(name string, mdl model.Model, store *state.Store, optFns ...func(o *SynthesisWorkerOptions)) *SynthesisWorker {
	opts := SynthesisWorkerOptions{
		Interval:     time.Minute,
		Instructions: defaultInstructions,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SynthesisWorker{name: name, model: mdl, store: store, opts: opts}
}

// Name implements core.Agent.
func (w *SynthesisWorker) Name() string { return w.name }

// Run implements core.Agent.
func (w *SynthesisWorker) Run(taskCtx *core.TaskContext) error {
	var lastRevision uint64

	for cycle := 0; w.opts.MaxCycles == 0 || cycle < w.opts.MaxCycles; cycle++ {
		revision := w.store.Revision()

		if revision != lastRevision && revision != 0 {
			snapshot := w.store.State()

			text, err := w.generate(taskCtx.Context, buildPrompt(snapshot))
			if err != nil {
				return fmt.Errorf("synthesis worker %s: generate digest: %w", w.name, err)
			}

			delta := map[string]any{
				KeyReportSummary:     text,
				KeyReportRevision:    revision,
				KeyReportGeneratedAt: time.Now().UTC(),
			}
			if err := w.store.ApplyDelta(delta); err != nil {
				return fmt.Errorf("synthesis worker %s: publish digest: %w", w.name, err)
			}

			// Reading the revision after our own write keeps the worker from
			// treating its published digest as fresh input next cycle.
			lastRevision = w.store.Revision()
			taskCtx.Memory.Set(memReportLastRevision, lastRevision)
			taskCtx.Memory.Set(memReportDigests, taskCtx.Memory.Int(memReportDigests)+1)

			taskCtx.LogDebug("digest published agent=%s revision=%d", w.name, revision)
		}

		if err := taskCtx.Sleep(w.opts.Interval); err != nil {
			return err
		}
	}

	return nil
}

// generate drains one Generate call, returning the final response text.
func (w *SynthesisWorker) generate(ctx context.Context, prompt string) (string, error) {
	respCh, errCh := w.model.Generate(ctx, model.Request{
		Instructions: w.opts.Instructions,
		Prompt:       prompt,
	})

	var final string
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = resp.Text
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	return final, nil
}

// buildPrompt renders a snapshot as deterministic key-sorted lines, skipping
// the worker's own report keys.
func buildPrompt(snapshot state.Snapshot) string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		if strings.HasPrefix(k, "report.") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Current research state:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, snapshot[k])
	}
	return b.String()
}
