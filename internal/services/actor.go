package services

import "shuttle_tracker/internal/models"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID   uint
	Username string
	Role     models.Role
}
