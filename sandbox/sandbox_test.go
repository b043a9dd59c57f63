package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentsandbox/core"
)

// testAgent is a scripted agent whose behavior is supplied by a closure.
type testAgent struct {
	name  string
	runFn func(taskCtx *core.TaskContext) error
}

func newTestAgent(name string, runFn func(taskCtx *core.TaskContext) error) *testAgent {
	return &testAgent{name: name, runFn: runFn}
}

func (a *testAgent) Name() string { return a.name }

func (a *testAgent) Run(taskCtx *core.TaskContext) error {
	return a.runFn(taskCtx)
}

func TestNew(t *testing.T) {
	t.Run("rejects empty agent list", func(t *testing.T) {
		_, err := New(nil)
		require.ErrorIs(t, err, ErrNoAgents)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		noop := func(taskCtx *core.TaskContext) error { return nil }
		_, err := New([]core.Agent{
			newTestAgent("dup", noop),
			newTestAgent("dup", noop),
		})
		require.ErrorIs(t, err, ErrDuplicateAgentName)
		assert.Contains(t, err.Error(), "dup")
	})

	t.Run("accepts unique agents", func(t *testing.T) {
		noop := func(taskCtx *core.TaskContext) error { return nil }
		sb, err := New([]core.Agent{
			newTestAgent("a", noop),
			newTestAgent("b", noop),
		})
		require.NoError(t, err)
		assert.NotNil(t, sb)
	})
}

func TestSandbox_RoundRobinInterleaving(t *testing.T) {
	// Only the baton holder runs between suspension points, so an unguarded
	// shared slice is safe and its order is fully deterministic.
	var trace []string

	mkAgent := func(name string, cycles int) *testAgent {
		return newTestAgent(name, func(taskCtx *core.TaskContext) error {
			for i := 0; i < cycles; i++ {
				trace = append(trace, fmt.Sprintf("%s:%d", name, i))
				if err := taskCtx.Yield(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	sb, err := New([]core.Agent{
		mkAgent("a", 3),
		mkAgent("b", 3),
		mkAgent("c", 3),
	})
	require.NoError(t, err)

	require.NoError(t, sb.Run(context.Background()))

	expected := []string{
		"a:0", "b:0", "c:0",
		"a:1", "b:1", "c:1",
		"a:2", "b:2", "c:2",
	}
	assert.Equal(t, expected, trace)
}

func TestSandbox_FirstFailurePropagates(t *testing.T) {
	errBoom := errors.New("boom")

	cycles := map[string]int{}

	survivor := func(name string) *testAgent {
		return newTestAgent(name, func(taskCtx *core.TaskContext) error {
			for {
				cycles[name]++
				if err := taskCtx.Yield(); err != nil {
					return err
				}
			}
		})
	}

	// Fails after its second suspension point.
	failing := newTestAgent("c", func(taskCtx *core.TaskContext) error {
		for i := 0; i < 2; i++ {
			cycles["c"]++
			if err := taskCtx.Yield(); err != nil {
				return err
			}
		}
		return errBoom
	})

	sb, err := New([]core.Agent{survivor("a"), survivor("b"), failing})
	require.NoError(t, err)

	err = sb.Run(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "agent c failed")

	// Siblings made progress before the failure terminated the run.
	assert.GreaterOrEqual(t, cycles["a"], 2)
	assert.GreaterOrEqual(t, cycles["b"], 2)
	assert.Equal(t, 2, cycles["c"])
}

func TestSandbox_DeliberateCompletionRemovesAgent(t *testing.T) {
	var trace []string

	early := newTestAgent("early", func(taskCtx *core.TaskContext) error {
		trace = append(trace, "early")
		return nil
	})
	late := newTestAgent("late", func(taskCtx *core.TaskContext) error {
		for i := 0; i < 3; i++ {
			trace = append(trace, "late")
			if err := taskCtx.Yield(); err != nil {
				return err
			}
		}
		return nil
	})

	sb, err := New([]core.Agent{early, late})
	require.NoError(t, err)

	require.NoError(t, sb.Run(context.Background()))
	assert.Equal(t, []string{"early", "late", "late", "late"}, trace)
}

func TestSandbox_SleepersCoexistWithYielders(t *testing.T) {
	var sleeps, yields int

	sleeper := newTestAgent("sleeper", func(taskCtx *core.TaskContext) error {
		for i := 0; i < 2; i++ {
			sleeps++
			if err := taskCtx.Sleep(5 * time.Millisecond); err != nil {
				return err
			}
		}
		return nil
	})
	yielder := newTestAgent("yielder", func(taskCtx *core.TaskContext) error {
		for i := 0; i < 10; i++ {
			yields++
			if err := taskCtx.Yield(); err != nil {
				return err
			}
		}
		return nil
	})

	sb, err := New([]core.Agent{sleeper, yielder})
	require.NoError(t, err)

	require.NoError(t, sb.Run(context.Background()))
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, 10, yields)
}

func TestSandbox_AwaitExternalEvent(t *testing.T) {
	event := make(chan struct{})
	var woke bool

	waiter := newTestAgent("waiter", func(taskCtx *core.TaskContext) error {
		if err := taskCtx.Await(event); err != nil {
			return err
		}
		woke = true
		return nil
	})
	signaler := newTestAgent("signaler", func(taskCtx *core.TaskContext) error {
		if err := taskCtx.Yield(); err != nil {
			return err
		}
		close(event)
		return nil
	})

	sb, err := New([]core.Agent{waiter, signaler})
	require.NoError(t, err)

	require.NoError(t, sb.Run(context.Background()))
	assert.True(t, woke)
}

func TestSandbox_Lifecycle(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	blocking := newTestAgent("blocking", func(taskCtx *core.TaskContext) error {
		close(started)
		return taskCtx.Await(release)
	})

	sb, err := New([]core.Agent{blocking})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- sb.Run(context.Background()) }()

	<-started
	assert.ErrorIs(t, sb.Run(context.Background()), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-errCh)

	assert.ErrorIs(t, sb.Run(context.Background()), ErrTerminated)
}

func TestSandbox_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	spinner := newTestAgent("spinner", func(taskCtx *core.TaskContext) error {
		for {
			if err := taskCtx.Yield(); err != nil {
				return err
			}
		}
	})

	sb, err := New([]core.Agent{spinner})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err = sb.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSandbox_MemoryIsPerAgent(t *testing.T) {
	mismatch := false

	mkAgent := func(name string) *testAgent {
		return newTestAgent(name, func(taskCtx *core.TaskContext) error {
			taskCtx.Memory.Set("owner", name)
			for i := 0; i < 3; i++ {
				if err := taskCtx.Yield(); err != nil {
					return err
				}
				if taskCtx.Memory.String("owner") != name {
					mismatch = true
				}
			}
			return nil
		})
	}

	sb, err := New([]core.Agent{mkAgent("a"), mkAgent("b")})
	require.NoError(t, err)

	require.NoError(t, sb.Run(context.Background()))
	assert.False(t, mismatch, "agent memory leaked across agents")
}
