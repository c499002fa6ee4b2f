package resilience

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupIsolatesKeys(t *testing.T) {
	group := NewGroup(Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	_ = group.Execute("bad.example.com", func() error { return errFailed })

	assert.ErrorIs(t, group.Execute("bad.example.com", func() error { return nil }), ErrCircuitOpen)
	assert.NoError(t, group.Execute("good.example.com", func() error { return nil }))

	states := group.States()
	assert.Equal(t, StateOpen, states["bad.example.com"])
	assert.Equal(t, StateClosed, states["good.example.com"])
}

func TestGroupGetConcurrent(t *testing.T) {
	group := NewGroup(Settings{})

	var wg sync.WaitGroup
	got := make([]*Breaker, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = group.Get("example.com")
		}(i)
	}
	wg.Wait()

	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestGroupReset(t *testing.T) {
	group := NewGroup(Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	group.Get("closed.example.com")
	_ = group.Execute("open.example.com", func() error { return errFailed })

	group.Reset()

	states := group.States()
	assert.NotContains(t, states, "closed.example.com")
	assert.Contains(t, states, "open.example.com")
}
