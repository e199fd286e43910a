package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// now is the store clock. Timestamps are UTC and truncated to microseconds so
// they survive a round trip through postgres unchanged.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newOrderedID returns a ULID for t. Within the process, ids are strictly
// increasing, which breaks created_at ties in insertion order.
func newOrderedID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewConversation builds an unsaved conversation record. Inserting it is left to
// Tx.InsertConversation so creation can commit together with the first turn.
func NewConversation(persona conversation.Persona) *conversation.Conversation {
	return &conversation.Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now(),
		Persona:   persona,
	}
}
