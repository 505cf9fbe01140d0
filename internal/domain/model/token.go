package model

import "time"

// AccessToken is a short-lived bearer token issued by the platform for one credential.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be handed out at now, keeping at
// least margin of remaining lifetime.
func (t AccessToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Value != "" && now.Add(margin).Before(t.ExpiresAt)
}
