package task

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coio-go/coio/exec"
)

func TestSharedTaskBroadcastsToAllAwaiters(t *testing.T) {
	var runs int32
	inner := New(func(c *Ctx) (int, error) {
		atomic.AddInt32(&runs, 1)
		return 7, nil
	})
	shared := NewSharedTask(inner)

	const n = 5
	var wg sync.WaitGroup
	results := make([]int, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			v, _, err := runSync(shared, exec.Env{})
			require.NoError(t, err)
			results[i] = v
		}()
	}

	Produce(inner, shared, exec.Env{})
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestSharedTaskLateAwaiterGetsCachedOutcome(t *testing.T) {
	inner := New(func(c *Ctx) (string, error) { return "done", nil })
	shared := NewSharedTask(inner)

	Produce(inner, shared, exec.Env{})
	// Give the producer goroutine a chance to settle before attaching late.
	first, _, err := runSync(shared, exec.Env{})
	require.NoError(t, err)
	assert.Equal(t, "done", first)

	second, _, err := runSync(shared, exec.Env{})
	require.NoError(t, err)
	assert.Equal(t, "done", second)
}

func TestSharedTaskSecondProduceIsNoop(t *testing.T) {
	var runs int32
	inner := New(func(c *Ctx) (int, error) {
		atomic.AddInt32(&runs, 1)
		return 1, nil
	})
	shared := NewSharedTask(inner)

	Produce(inner, shared, exec.Env{})
	_, _, err := runSync(shared, exec.Env{})
	require.NoError(t, err)
	Produce(inner, shared, exec.Env{})
	_, _, err = runSync(shared, exec.Env{})
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}
