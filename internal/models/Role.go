package models

import (
	"errors"
	"strings"
)

// Role is the closed set of account kinds. Capabilities are checked through
// the methods below rather than by comparing strings at call sites.
type Role string

const (
	RoleStudent Role = "student"
	RoleDriver  Role = "driver"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes user input into a Role. Empty input means student.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role == "" {
		return RoleStudent, nil
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDriver, RoleParent, RoleAdmin:
		return true
	}
	return false
}

// CanDrive reports whether the role may push locations and answer wait requests.
func (r Role) CanDrive() bool { return r == RoleDriver }

// CanAdminister reports whether the role may manage buses, routes and users.
func (r Role) CanAdminister() bool { return r == RoleAdmin }

// CanRequestWait reports whether the role may ask a bus to wait.
func (r Role) CanRequestWait() bool { return r.Valid() }

func (r Role) String() string { return string(r) }
