package credential

// Effect is a human-readable description of a single change applied by a
// transaction. Effects feed audit logs.
type Effect string

// String returns the effect as a string.
func (e Effect) String() string {
	return string(e)
}
