package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/services"
)

func (ctl *Controller) ListUsers(c *gin.Context) {
	users, err := ctl.Admin.ListUsers(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (ctl *Controller) CreateUser(c *gin.Context) {
	var input signupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := ctl.Auth.CreateUser(c.Request.Context(), actorFrom(c), input.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (ctl *Controller) ListBuses(c *gin.Context) {
	buses, err := ctl.Admin.ListBuses(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buses})
}

func (ctl *Controller) CreateBus(c *gin.Context) {
	var input struct {
		BusNumber string `json:"bus_number" binding:"required"`
		DriverID  *uint  `json:"driver_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus input: " + err.Error()})
		return
	}
	bus, err := ctl.Admin.CreateBus(c.Request.Context(), actorFrom(c), input.BusNumber, input.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bus": bus})
}

// AssignDriver sets the bus's driver; a null driver_id unassigns it.
func (ctl *Controller) AssignDriver(c *gin.Context) {
	busID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		DriverID *uint `json:"driver_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver assignment"})
		return
	}
	bus, err := ctl.Admin.AssignDriver(c.Request.Context(), actorFrom(c), busID, input.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

func (ctl *Controller) ListRoutes(c *gin.Context) {
	routes, err := ctl.Admin.ListRoutes(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": routes})
}

type stopPayload struct {
	Name          string  `json:"name" binding:"required"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	StopOrder     int     `json:"stop_order"`
	EstimatedTime string  `json:"estimated_time"`
}

func (ctl *Controller) CreateRoute(c *gin.Context) {
	var input struct {
		BusID     uint          `json:"bus_id" binding:"required"`
		RouteName string        `json:"route_name" binding:"required"`
		StartTime string        `json:"start_time" binding:"required"`
		EndTime   string        `json:"end_time" binding:"required"`
		Stops     []stopPayload `json:"stops" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route input: " + err.Error()})
		return
	}

	stops := make([]services.StopInput, 0, len(input.Stops))
	for _, s := range input.Stops {
		stops = append(stops, services.StopInput{
			Name:          s.Name,
			Lat:           s.Lat,
			Lng:           s.Lng,
			StopOrder:     s.StopOrder,
			EstimatedTime: s.EstimatedTime,
		})
	}
	route, err := ctl.Admin.CreateRoute(c.Request.Context(), actorFrom(c), services.CreateRouteInput{
		BusID:     input.BusID,
		RouteName: input.RouteName,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Stops:     stops,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": route})
}
