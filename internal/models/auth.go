package models

import "time"

// Principal is the authenticated caller extracted from a bearer token.
// ExpiresAt is the token's exp claim.
type Principal struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
