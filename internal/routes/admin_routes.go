package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, ctl *controllers.Controller) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuth(ctl.Tokens), middleware.RequireCapability(middleware.Admins))
	{
		admin.GET("/users", ctl.ListUsers)
		admin.POST("/users", ctl.CreateUser)
		admin.GET("/buses", ctl.ListBuses)
		admin.POST("/buses", ctl.CreateBus)
		admin.PUT("/buses/:id/driver", ctl.AssignDriver)
		admin.GET("/routes", ctl.ListRoutes)
		admin.POST("/routes", ctl.CreateRoute)
	}
}
