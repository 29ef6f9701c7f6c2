package checkout

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultReferencePrefix prefixes generated transaction references.
const DefaultReferencePrefix = "BOOKS"

// ReferenceGenerator issues per-attempt references of the form PREFIX-<unix millis>.
// References are strictly increasing within a process even if the clock stalls
// or steps backwards.
type ReferenceGenerator struct {
	Prefix string
	Now    func() time.Time

	mu   sync.Mutex
	last int64
}

// Next returns a fresh reference.
func (g *ReferenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ms := now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	prefix := strings.TrimSpace(g.Prefix)
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	return prefix + "-" + strconv.FormatInt(ms, 10)
}
