package models

import "time"

// Lock is a named mutual-exclusion lease. At most one non-expired lock row
// exists per name; an expired lease is treated as absent on the next acquire.
type Lock struct {
	Name       string    `badgerhold:"key" json:"name"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewLock creates a lease for the given holder with the given TTL
func NewLock(name, holderID string, ttl time.Duration) *Lock {
	now := time.Now().UTC()
	return &Lock{
		Name:       name,
		HolderID:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// Expired reports whether the lease has lapsed at the given time
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
