package credential

import "github.com/google/uuid"

// Handle is an opaque identifier for an outstanding lease.
type Handle string

// NewHandle mints a new unique lease handle.
func NewHandle() Handle {
	return Handle(uuid.New().String())
}

// Empty returns true if the handle is blank.
func (h Handle) Empty() bool {
	return h == ""
}
