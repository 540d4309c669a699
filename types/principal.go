package types

// Principal is an opaque caller identity supplied by the host environment.
// The ledger only compares principals for equality and uses them as keys.
type Principal string

// String returns the principal as a plain string.
func (p Principal) String() string { return string(p) }

// IsZero reports whether the principal is empty.
func (p Principal) IsZero() bool { return p == "" }
