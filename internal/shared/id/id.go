// Package id generates the identifiers the proxy hands out for correlation.
//
// Request ids are prefixed ULIDs (req_01H...): sortable by creation time,
// short enough for log lines and response headers, and easy to spot in the
// error envelope returned to callers.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one inbound proxy request
type RequestID string

// RequestPrefix marks request ids in logs and error bodies
const RequestPrefix = "req"

// Generator produces ULIDs from a shared entropy source
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader, now: time.Now}
}

// NewGeneratorWithEntropy creates a generator with a caller-supplied entropy source.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix creates a prefixed ULID string such as req_01H...
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a request id from the default generator
func NewRequestID() RequestID {
	return RequestID(Default().WithPrefix(RequestPrefix))
}

func (r RequestID) String() string { return string(r) }

// IsRequestID reports whether s has the req_<ulid> shape.
func IsRequestID(s string) bool {
	rest, ok := strings.CutPrefix(s, RequestPrefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// Timestamp extracts the creation time encoded in a request id
func Timestamp(r RequestID) (time.Time, error) {
	rest, ok := strings.CutPrefix(string(r), RequestPrefix+"_")
	if !ok {
		return time.Time{}, fmt.Errorf("not a request id: %q", r)
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
