package correlation

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces correlation ids that stay unique for the lifetime of the process.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator issues "<prefix>-<n>" ids from a monotonic counter. The prefix is
// random per generator so two processes sharing a venue account do not collide.
type SequenceGenerator struct {
	prefix string
	next   atomic.Uint64
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return &SequenceGenerator{prefix: prefix}
}

func (g *SequenceGenerator) NewID() string {
	n := g.next.Add(1)
	return g.prefix + "-" + strconv.FormatUint(n, 10)
}
