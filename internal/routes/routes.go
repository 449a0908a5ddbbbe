package routes

import (
	"io"
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/middleware"
)

type Options struct {
	Metrics     *metrics.Collector
	AccessLog   io.Writer
	CORSOrigins []string
}

// SetupRouter wires every route group onto a new engine.
func SetupRouter(ctl *controllers.Controller, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logrus.WithField("panic", recovered).Error("Handler panicked.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	r.Use(middleware.RequestID())
	if opts.AccessLog != nil {
		r.Use(ginlog.SetLogger(
			ginlog.WithWriter(opts.AccessLog),
			ginlog.WithUTC(true),
			ginlog.WithSkipPath([]string{"/health", "/metrics"}),
		))
	}
	r.Use(middleware.CORS(opts.CORSOrigins))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	r.GET("/health", controllers.Health)

	AuthRoutes(r, ctl)
	APIRoutes(r, ctl)
	DriverRoutes(r, ctl)
	AdminRoutes(r, ctl)
	WebSocketRoutes(r, ctl)

	return r
}
