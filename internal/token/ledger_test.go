package token

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLedger(ttl time.Duration, max int) (*Ledger, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewLedger(Settings{TTL: ttl, MaxRequests: max, Now: clock.Now}), clock
}

func TestIssue(t *testing.T) {
	l, clock := newTestLedger(time.Minute, 3)

	tok := l.Issue("203.0.113.7")
	assert.NotEmpty(t, tok.ID)
	assert.Equal(t, "203.0.113.7", tok.ClientID)
	assert.Equal(t, clock.Now(), tok.CreatedAt)
	assert.Equal(t, clock.Now().Add(time.Minute), tok.ExpiresAt)
	assert.Equal(t, 3, tok.MaxRequests)
	assert.Equal(t, 3, tok.Remaining())
	assert.Equal(t, 1, l.Len())

	other := l.Issue("203.0.113.7")
	assert.NotEqual(t, tok.ID, other.ID)
}

func TestNewLedgerDefaults(t *testing.T) {
	l := NewLedger(Settings{})
	assert.Equal(t, 15*time.Minute, l.TTL())
	assert.Equal(t, 500, l.MaxRequests())
}

func TestValidateFailsClosed(t *testing.T) {
	l, clock := newTestLedger(time.Minute, 1)

	_, err := l.Validate("")
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = l.Validate("nope")
	assert.ErrorIs(t, err, ErrTokenUnknown)

	exhausted := l.Issue("c")
	require.True(t, l.IsValid(exhausted.ID))
	_, err = l.Validate(exhausted.ID)
	assert.ErrorIs(t, err, ErrTokenExhausted)

	expiring := l.Issue("c")
	clock.Advance(time.Minute)
	_, err = l.Validate(expiring.ID)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Expired tokens are forgotten on first sight
	_, err = l.Validate(expiring.ID)
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestValidateExpiryInstant(t *testing.T) {
	l, clock := newTestLedger(time.Minute, 10)
	tok := l.Issue("c")

	clock.Advance(time.Minute - time.Nanosecond)
	assert.True(t, l.IsValid(tok.ID))

	clock.Advance(time.Nanosecond)
	assert.False(t, l.IsValid(tok.ID))
}

func TestValidateAdmitsExactlyCap(t *testing.T) {
	l, _ := newTestLedger(time.Hour, 5)
	tok := l.Issue("c")

	for i := 1; i <= 5; i++ {
		got, err := l.Validate(tok.ID)
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, i, got.Requests)
	}

	_, err := l.Validate(tok.ID)
	assert.ErrorIs(t, err, ErrTokenExhausted)
}

func TestValidateConcurrentNoOverAdmission(t *testing.T) {
	const limit = 100
	const callers = 64
	const perCaller = 10

	l, _ := newTestLedger(time.Hour, limit)
	tok := l.Issue("c")

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perCaller; j++ {
				if l.IsValid(tok.ID) {
					admitted.Add(1)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(limit), admitted.Load())
}

func TestRevoke(t *testing.T) {
	l, _ := newTestLedger(time.Hour, 5)
	tok := l.Issue("c")

	l.Revoke(tok.ID)
	_, err := l.Validate(tok.ID)
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestSweepOnce(t *testing.T) {
	l, clock := newTestLedger(time.Minute, 1)

	for i := 0; i < 10; i++ {
		l.Issue(fmt.Sprintf("old-%d", i))
	}
	spent := l.Issue("spent")
	require.True(t, l.IsValid(spent.ID))

	clock.Advance(30 * time.Second)
	fresh := l.Issue("fresh")
	clock.Advance(30 * time.Second)

	removed := l.SweepOnce()
	assert.Equal(t, 11, removed)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.IsValid(fresh.ID))
}

func TestSweepRunsUntilCancelled(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := NewLedger(Settings{TTL: time.Millisecond, MaxRequests: 1, Now: clock.Now})
	l.Issue("c")
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		l.Sweep(ctx, 5*time.Millisecond, func(removed, remaining int) {
			select {
			case swept <- removed:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop")
	}
	assert.Equal(t, 0, l.Len())
}

func TestCustomIDGenerator(t *testing.T) {
	n := 0
	l := NewLedger(Settings{NewID: func() string {
		n++
		return fmt.Sprintf("tok-%d", n)
	}})

	assert.Equal(t, "tok-1", l.Issue("c").ID)
	assert.Equal(t, "tok-2", l.Issue("c").ID)
}

func BenchmarkValidate(b *testing.B) {
	l := NewLedger(Settings{MaxRequests: 1 << 30})
	tok := l.Issue("bench")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.IsValid(tok.ID)
		}
	})
}
