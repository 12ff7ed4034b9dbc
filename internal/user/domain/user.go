package domain

import (
	"errors"
	"time"
)

// Role is the platform role carried on the user record and snapshotted into
// sessions and tokens.
type Role string

const (
	RoleUser   Role = "USER"
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

// ApprovalStatus gates driver operations beyond role membership.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Permission is one admin capability: a resource plus an action.
// Action "manage" covers every action on its resource.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// ActionManage covers all actions on a resource.
const ActionManage = "manage"

// User is the core user entity. Riders are created by external-identity
// reconciliation; drivers register with a password and start unapproved.
type User struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	EmailVerified bool
	Role          Role
	PasswordHash  string // drivers only; empty for external-identity riders
	Phone         string
	CountryCode   string
	// ProviderSubject is the external identity provider's subject id
	// ("auth0_sub"-equivalent); empty for password-registered users.
	ProviderSubject string
	AvatarURL       string
	Deleted         bool // soft delete; excluded from all auth lookups
	Online          bool
	SocketConnected bool

	// Driver fields.
	ApprovalStatus ApprovalStatus
	Rating         float64
	TotalRides     int
	TotalEarnings  float64

	// Rider fields.
	LoyaltyPoints int

	// Admin fields.
	Permissions []Permission
	SuperAdmin  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence.
func (u *User) Validate() error {
	if u.Email == "" && u.ProviderSubject == "" {
		return errors.New("email or provider subject is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// FullName returns first and last name joined; empty parts are skipped.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}
