package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
)

// APIRoutes are open to any signed-in user.
func APIRoutes(r *gin.Engine, ctl *controllers.Controller) {
	api := r.Group("/api")
	api.Use(middleware.RequireAuth(ctl.Tokens))
	{
		api.GET("/bus_locations", ctl.GetBusLocations)
		api.GET("/buses/nearby", ctl.GetNearbyBuses)
		api.POST("/wait_request", ctl.CreateWaitRequest)
		api.GET("/eta/:bus_id/:stop_id", ctl.GetETA)
		api.GET("/routes/:bus_id", ctl.GetRouteStops)
	}
}
