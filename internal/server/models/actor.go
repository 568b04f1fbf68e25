// Package models holds the persistent records of the escrow server.
package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Role int16

const (
	RoleDeveloper Role = 1
	RoleLeader    Role = 2
	RoleSenior    Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleDeveloper:
		return "developer"
	case RoleLeader:
		return "leader"
	case RoleSenior:
		return "senior"
	default:
		return fmt.Sprintf("role(%d)", int16(r))
	}
}

// ParseRole accepts the lower-case role names produced by Role.String.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "developer":
		return RoleDeveloper, nil
	case "leader":
		return RoleLeader, nil
	case "senior":
		return RoleSenior, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

type Status int16

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// Actor is a user of the system. Public keys are stored in the encoding
// they were enrolled with and are NULL until enrollment.
type Actor struct {
	ID                  string
	Name                string
	Email               string
	PasswordSalt        []byte
	PasswordVerifier    []byte
	Role                Role
	Status              Status
	Verified            bool
	SigningPublicKey    sql.NullString
	EncryptionPublicKey sql.NullString
	CreatedAt           time.Time
}

// IsLive reports whether the account is both active and verified.
func (a *Actor) IsLive() bool {
	return a.Status == StatusActive && a.Verified
}

func (a *Actor) HasEncryptionKey() bool {
	return a.EncryptionPublicKey.Valid && a.EncryptionPublicKey.String != ""
}

func (a *Actor) HasSigningKey() bool {
	return a.SigningPublicKey.Valid && a.SigningPublicKey.String != ""
}
