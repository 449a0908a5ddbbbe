// Package controllers holds the gin handlers. Handlers parse input, build
// the caller's services.Actor from the token claims and translate service
// errors into HTTP status codes.
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type Controller struct {
	Auth         *services.AuthService
	Locations    *services.LocationService
	WaitRequests *services.WaitRequestService
	ETA          *services.ETAService
	Admin        *services.AdminService
	Tokens       *middleware.Tokens
	Hub          *hub.Hub
}

// actorFrom reads the identity RequireAuth stored in the context.
func actorFrom(c *gin.Context) services.Actor {
	actor := services.Actor{Username: c.GetString(middleware.ContextUsername)}
	if id, ok := c.Get(middleware.ContextUserID); ok {
		actor.UserID, _ = id.(uint)
	}
	if role, ok := c.Get(middleware.ContextRole); ok {
		actor.Role, _ = role.(models.Role)
	}
	return actor
}

// respondError writes the status code matching a service error. Anything
// unclassified is logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.ContextRequestID),
		}).Error("Request failed.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format."})
		return 0, false
	}
	return uint(id), true
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": nowUTC()})
}
