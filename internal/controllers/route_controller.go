package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetETA returns {"eta": minutes} or {"eta": null} when the bus has no
// position yet.
func (ctl *Controller) GetETA(c *gin.Context) {
	busID, ok := paramID(c, "bus_id")
	if !ok {
		return
	}
	stopID, ok := paramID(c, "stop_id")
	if !ok {
		return
	}
	eta, err := ctl.ETA.GetETA(c.Request.Context(), busID, stopID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eta": eta})
}

func (ctl *Controller) GetRouteStops(c *gin.Context) {
	busID, ok := paramID(c, "bus_id")
	if !ok {
		return
	}
	stops, err := ctl.ETA.GetRouteStops(c.Request.Context(), busID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stops)
}
