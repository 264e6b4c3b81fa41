package model

import "time"

// APIKey is a customer credential for calling the gateway. Records are never
// deleted; revocation flips Active to false.
type APIKey struct {
	Key       string    `json:"-"`
	ID        string    `json:"id"`
	Customer  string    `json:"customer"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyPrefix returns the first characters of the raw key, safe to display.
func (k *APIKey) KeyPrefix() string {
	if len(k.Key) <= 8 {
		return k.Key
	}
	return k.Key[:8]
}
