package correlation

import "github.com/google/uuid"

// NewKey returns a fresh random correlation key.
func NewKey() string {
	return uuid.NewString()
}
