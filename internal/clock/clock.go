// Package clock abstracts the wall-clock source the ledger consults when
// stamping acceptance times and rejecting future-dated proofs. Production
// code uses the system clock; tests substitute a fixed one.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the operating system clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Useful in tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// At returns a Fixed clock pinned to the given unix timestamp.
func At(unix int64) Fixed {
	return Fixed{T: time.Unix(unix, 0).UTC()}
}
