package token

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenUnknown   = errors.New("token unknown")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenExhausted = errors.New("token request cap reached")
)

const shardCount = 32

// AccessToken is a short-lived, request-capped credential.
type AccessToken struct {
	ID          string
	ClientID    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Requests    int
	MaxRequests int
}

// Remaining returns how many validations the token still admits.
func (t AccessToken) Remaining() int {
	if n := t.MaxRequests - t.Requests; n > 0 {
		return n
	}
	return 0
}

// expired is shared by Validate and Sweep so neither can disagree about
// the instant a token stops being usable.
func expired(t *AccessToken, now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Settings configures a Ledger.
type Settings struct {
	TTL         time.Duration
	MaxRequests int
	// Now is the clock; defaults to time.Now
	Now func() time.Time
	// NewID generates token ids; defaults to random UUIDs
	NewID func() string
}

type shard struct {
	mu     sync.Mutex
	tokens map[string]*AccessToken
}

// Ledger stores issued tokens in memory, split across independently
// locked shards.
type Ledger struct {
	settings Settings
	shards   [shardCount]*shard
}

// NewLedger creates an empty ledger.
func NewLedger(settings Settings) *Ledger {
	if settings.TTL <= 0 {
		settings.TTL = 15 * time.Minute
	}
	if settings.MaxRequests <= 0 {
		settings.MaxRequests = 500
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.NewID == nil {
		settings.NewID = uuid.NewString
	}

	l := &Ledger{settings: settings}
	for i := range l.shards {
		l.shards[i] = &shard{tokens: make(map[string]*AccessToken)}
	}
	return l
}

// TTL returns the lifetime given to new tokens.
func (l *Ledger) TTL() time.Duration { return l.settings.TTL }

// MaxRequests returns the request cap given to new tokens.
func (l *Ledger) MaxRequests() int { return l.settings.MaxRequests }

func (l *Ledger) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return l.shards[h.Sum32()%shardCount]
}

// Issue creates a token for clientID and returns a copy of it.
func (l *Ledger) Issue(clientID string) AccessToken {
	now := l.settings.Now()
	t := &AccessToken{
		ID:          l.settings.NewID(),
		ClientID:    clientID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.settings.TTL),
		MaxRequests: l.settings.MaxRequests,
	}

	s := l.shardFor(t.ID)
	s.mu.Lock()
	s.tokens[t.ID] = t
	s.mu.Unlock()

	return *t
}

// Validate admits one request against the token. It fails closed with
// ErrTokenMissing, ErrTokenUnknown, ErrTokenExpired or ErrTokenExhausted.
// The expiry check, cap check and increment happen under one lock, so a
// token with cap n admits exactly n calls however they interleave.
func (l *Ledger) Validate(id string) (AccessToken, error) {
	if id == "" {
		return AccessToken{}, ErrTokenMissing
	}

	s := l.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return AccessToken{}, ErrTokenUnknown
	}
	if expired(t, l.settings.Now()) {
		delete(s.tokens, id)
		return AccessToken{}, ErrTokenExpired
	}
	if t.Requests >= t.MaxRequests {
		return *t, ErrTokenExhausted
	}

	t.Requests++
	return *t, nil
}

// IsValid reports whether Validate succeeds.
func (l *Ledger) IsValid(id string) bool {
	_, err := l.Validate(id)
	return err == nil
}

// Revoke removes a token.
func (l *Ledger) Revoke(id string) {
	s := l.shardFor(id)
	s.mu.Lock()
	delete(s.tokens, id)
	s.mu.Unlock()
}

// Len returns the number of stored tokens, expired or not.
func (l *Ledger) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.tokens)
		s.mu.Unlock()
	}
	return n
}

// SweepOnce evicts expired and exhausted tokens and returns how many were
// removed. Shards are locked one at a time.
func (l *Ledger) SweepOnce() int {
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		now := l.settings.Now()
		for id, t := range s.tokens {
			if expired(t, now) || t.Requests >= t.MaxRequests {
				delete(s.tokens, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Sweep runs SweepOnce every interval until ctx is done. onSweep, when
// non-nil, receives the number removed and the number remaining.
func (l *Ledger) Sweep(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.SweepOnce()
			if onSweep != nil {
				onSweep(removed, l.Len())
			}
		}
	}
}
