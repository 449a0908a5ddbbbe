package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
)

// WebSocketRoutes authenticate through the token query parameter inside the
// handler, since browsers cannot set headers on a websocket handshake.
func WebSocketRoutes(r *gin.Engine, ctl *controllers.Controller) {
	ws := r.Group("/ws")
	{
		ws.GET("/location", ctl.HandleLocationWebSocket)
	}
}
