package domain

import "time"

// Session identifies one authenticated device/login.
//
// At most one live refresh token exists per session: rotation overwrites
// RefreshJTI and RefreshTokenHash, invalidating the prior value. The raw
// refresh token is never stored; only its SHA-256 hash.
type Session struct {
	ID               string
	UserID           string
	Role             string // role snapshot at creation
	DeviceType       string // e.g. "mobile", "web"
	RefreshJTI       string // current refresh token jti; empty until first issuance
	RefreshTokenHash string // SHA-256 hash of current refresh token; empty until first issuance
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
