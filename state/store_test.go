package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MergeAndNotify(t *testing.T) {
	store := New()

	var received []Snapshot
	sub, err := store.Subscribe(func(snapshot Snapshot) {
		received = append(received, snapshot)
	})
	require.NoError(t, err)

	require.NoError(t, store.ApplyDelta(map[string]any{"foo": "bar"}))
	require.Len(t, received, 1)
	assert.Equal(t, Snapshot{"foo": "bar"}, received[0])

	require.NoError(t, store.ApplyDelta(map[string]any{"baz": 42}))
	require.Len(t, received, 2)
	assert.Equal(t, Snapshot{"foo": "bar", "baz": 42}, received[1])

	require.NoError(t, store.Unsubscribe(sub))

	require.NoError(t, store.ApplyDelta(map[string]any{"qux": true}))
	assert.Len(t, received, 2, "removed subscriber must not be notified")

	assert.Equal(t, Snapshot{"foo": "bar", "baz": 42, "qux": true}, store.State())
}

func TestStore_OverwriteExistingKey(t *testing.T) {
	store := New()

	require.NoError(t, store.Set("counter", 1))
	require.NoError(t, store.Set("counter", 2))

	v, ok := store.Get("counter")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStore_NotificationOrder(t *testing.T) {
	store := New()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		_, err := store.Subscribe(func(snapshot Snapshot) {
			order = append(order, name)
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.Set("k", "v"))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := New()

	var second Snapshot
	_, err := store.Subscribe(func(snapshot Snapshot) {
		// Mutating a delivered snapshot must not leak anywhere.
		delete(snapshot, "k")
		snapshot["injected"] = true
	})
	require.NoError(t, err)
	_, err = store.Subscribe(func(snapshot Snapshot) {
		second = snapshot
	})
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "v"))

	assert.Equal(t, Snapshot{"k": "v"}, second, "each subscriber gets its own copy")

	state := store.State()
	assert.Equal(t, Snapshot{"k": "v"}, state)

	state["k"] = "mutated"
	v, _ := store.Get("k")
	assert.Equal(t, "v", v, "State copies must not alias the store")
}

func TestStore_InitialValues(t *testing.T) {
	store := New(func(o *Options) {
		o.Initial = map[string]any{"seed": 1}
	})

	v, ok := store.Get("seed")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 0, store.Revision(), "seeding is not a merge")
}

func TestStore_Unsubscribe(t *testing.T) {
	store := New()

	t.Run("nil handle", func(t *testing.T) {
		assert.ErrorIs(t, store.Unsubscribe(nil), ErrSubscriberNotFound)
	})

	t.Run("unknown handle", func(t *testing.T) {
		assert.ErrorIs(t, store.Unsubscribe(&Subscription{id: "nope"}), ErrSubscriberNotFound)
	})

	t.Run("double unsubscribe", func(t *testing.T) {
		sub, err := store.Subscribe(func(Snapshot) {})
		require.NoError(t, err)
		require.NoError(t, store.Unsubscribe(sub))
		assert.ErrorIs(t, store.Unsubscribe(sub), ErrSubscriberNotFound)
	})
}

func TestStore_ReentrantMutationFailsFast(t *testing.T) {
	store := New()

	var applyErr, subErr, unsubErr error
	sub, err := store.Subscribe(func(Snapshot) {
		applyErr = store.ApplyDelta(map[string]any{"inner": true})
		_, subErr = store.Subscribe(func(Snapshot) {})
		unsubErr = store.Unsubscribe(&Subscription{id: "any"})
	})
	require.NoError(t, err)

	require.NoError(t, store.Set("outer", true))

	assert.ErrorIs(t, applyErr, ErrReentrantCall)
	assert.ErrorIs(t, subErr, ErrReentrantCall)
	assert.ErrorIs(t, unsubErr, ErrReentrantCall)

	// The guard resets once notification finishes.
	require.NoError(t, store.Unsubscribe(sub))
	require.NoError(t, store.Set("after", true))

	_, ok := store.Get("inner")
	assert.False(t, ok, "rejected reentrant merge must not be applied")
}

func TestStore_ReadsInsideCallback(t *testing.T) {
	store := New()

	var state Snapshot
	var value any
	var revision uint64
	_, err := store.Subscribe(func(snapshot Snapshot) {
		state = store.State()
		value, _ = store.Get("k")
		revision = store.Revision()
	})
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "v"))

	assert.Equal(t, Snapshot{"k": "v"}, state)
	assert.Equal(t, "v", value)
	assert.EqualValues(t, 1, revision)
}

func TestStore_Revision(t *testing.T) {
	store := New()
	assert.EqualValues(t, 0, store.Revision())

	require.NoError(t, store.Set("a", 1))
	assert.EqualValues(t, 1, store.Revision())

	require.NoError(t, store.ApplyDelta(map[string]any{"b": 2, "c": 3}))
	assert.EqualValues(t, 2, store.Revision(), "one merge is one revision regardless of key count")
}

func TestStore_ConcurrentWriters(t *testing.T) {
	store := New()

	notifications := 0
	_, err := store.Subscribe(func(Snapshot) {
		// Callbacks are serialized under the store lock.
		notifications++
	})
	require.NoError(t, err)

	const writers = 10
	const writesPerWriter = 20

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writesPerWriter; i++ {
				key := fmt.Sprintf("w%d.k%d", w, i)
				if err := store.Set(key, i); err != nil {
					t.Errorf("set %s: %v", key, err)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, store.State(), writers*writesPerWriter)
	assert.Equal(t, writers*writesPerWriter, notifications)
	assert.EqualValues(t, writers*writesPerWriter, store.Revision())
}

func TestSubscription_ID(t *testing.T) {
	store := New()

	a, err := store.Subscribe(func(Snapshot) {})
	require.NoError(t, err)
	b, err := store.Subscribe(func(Snapshot) {})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
