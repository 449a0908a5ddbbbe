package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/services"
)

type waitRequestPayload struct {
	BusID   uint   `json:"bus_id"`
	StopID  uint   `json:"stop_id"`
	Message string `json:"message"`
}

// CreateWaitRequest asks the bus's driver to wait at a stop.
func (ctl *Controller) CreateWaitRequest(c *gin.Context) {
	var body waitRequestPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bus ID and Stop ID are required"})
		return
	}
	req, err := ctl.WaitRequests.Create(c.Request.Context(), actorFrom(c), services.CreateWaitRequestInput{
		BusID:   body.BusID,
		StopID:  body.StopID,
		Message: body.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Wait request sent", "request_id": req.ID})
}
