package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
)

func DriverRoutes(r *gin.Engine, ctl *controllers.Controller) {
	driver := r.Group("/api")
	driver.Use(middleware.RequireAuth(ctl.Tokens), middleware.RequireCapability(middleware.Drivers))
	{
		driver.POST("/update_location", ctl.UpdateLocation)
		driver.POST("/respond_wait_request", ctl.RespondWaitRequest)
		driver.GET("/driver/wait_requests", ctl.GetDriverWaitRequests)
		driver.GET("/driver/bus", ctl.GetDriverBus)
	}
}
