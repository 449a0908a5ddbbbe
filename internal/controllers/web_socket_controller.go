package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers and the mobile app connect from arbitrary origins; the token
	// query parameter is what authenticates the socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleLocationWebSocket serves /ws/location?token=...[&bus_id=N].
// Every client receives bus positions (all buses, or only bus_id). Drivers
// also receive wait requests for the bus they currently drive and may push
// {"lat":..,"lng":..} frames instead of calling the REST endpoint.
func (ctl *Controller) HandleLocationWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	claims, err := ctl.Tokens.ParseToken(tokenString)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket connection attempt with invalid token.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var watchBus uint
	if raw := c.Query("bus_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'bus_id' parameter"})
			return
		}
		watchBus = uint(id)
	}

	actor := services.Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}

	client := hub.NewClient(conn, actor.UserID, watchBus, actor.Role.CanDrive())
	ctl.Hub.Register(client)
	defer ctl.Hub.Unregister(client)
	go client.WritePump()

	var handle func([]byte) any
	if actor.Role.CanDrive() {
		handle = func(p []byte) any { return ctl.driverFrame(actor, p) }
	}
	ctl.Hub.ReadLoop(client, handle)
}

// driverFrame applies one location frame sent over the socket.
func (ctl *Controller) driverFrame(actor services.Actor, p []byte) any {
	var body locationPayload
	if err := json.Unmarshal(p, &body); err != nil {
		return hub.Envelope{Type: "error", Data: "Invalid location data format."}
	}
	bus, err := ctl.Locations.UpdateLocation(context.Background(), actor, body.Lat, body.Lng)
	if err != nil {
		if services.KindOf(err) == 0 {
			logrus.WithError(err).WithField(middleware.ContextUserID, actor.UserID).Error("Failed to save location from socket.")
			return hub.Envelope{Type: "error", Data: "Failed to save location."}
		}
		return hub.Envelope{Type: "error", Data: err.Error()}
	}
	return hub.Envelope{Type: "ack", Data: gin.H{"status": "saved", "bus_id": bus.ID, "timestamp": bus.LastUpdated}}
}
