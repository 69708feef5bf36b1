package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Identifier prefixes used across the service. The prefix makes the entity
// kind recognisable in logs and support tickets without a lookup.
const (
	PrefixAgent    = "agt"
	PrefixPersona  = "per"
	PrefixActivity = "act"
	PrefixWebhook  = "wh"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewPrefixed returns a prefixed identifier, e.g. "agt_01j8...".
func NewPrefixed(prefix string) string {
	return prefix + "_" + strings.ToLower(New())
}

// HasPrefix reports whether id carries the given entity prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
