package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces request tokens that correlate the one-or-more
// executor calls of a single terminal builder call in log output.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request tokens.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails, which does not happen in practice.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens for deterministic tests.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
// Generate panics once all tokens are consumed; running out means the test
// issued more terminal calls than it declared.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
