package redsift

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 (time-ordered) identifier for entities whose ids
// are assigned by the application rather than the auto-increment counter.
// UUIDv7 benefits:
// - Sortable by creation time
// - Index friendly
// - Distributed system friendly (no coordination needed)
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return id.String()
}

// IsValidID checks if a string is a valid UUID
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ParseID parses a string into a UUID
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// tempKey returns a collision-free accumulator key scoped to a namespace.
// Concurrent searches never share accumulators, so no locking is needed.
func tempKey(namespace string) string {
	return namespace + ":" + uuid.NewString()
}
