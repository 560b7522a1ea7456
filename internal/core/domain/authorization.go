package domain

import "time"

// OriginAuthorization records that an origin completed the connect flow for
// an address. Presence implies the origin may call account and sign-adjacent
// methods without re-prompting, subject to the wallet being unlocked.
type OriginAuthorization struct {
	Origin    string `badgerhold:"key"`
	Address   string
	Timestamp time.Time
}

// NewOriginAuthorization returns an authorization for the given origin.
func NewOriginAuthorization(origin, address string) *OriginAuthorization {
	return &OriginAuthorization{
		Origin:    origin,
		Address:   address,
		Timestamp: time.Now(),
	}
}
