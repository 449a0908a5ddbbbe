package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// locationPayload carries pointers so an absent coordinate can be told
// apart from a zero one in the service.
type locationPayload struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type respondPayload struct {
	RequestID uint   `json:"request_id"`
	Response  string `json:"response"`
}

// UpdateLocation stores the calling driver's bus position.
func (ctl *Controller) UpdateLocation(c *gin.Context) {
	var body locationPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Location data required"})
		return
	}
	if _, err := ctl.Locations.UpdateLocation(c.Request.Context(), actorFrom(c), body.Lat, body.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) GetDriverWaitRequests(c *gin.Context) {
	reqs, err := ctl.WaitRequests.ListPendingForDriver(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (ctl *Controller) RespondWaitRequest(c *gin.Context) {
	var body respondPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request ID and response are required"})
		return
	}
	if _, err := ctl.WaitRequests.Respond(c.Request.Context(), actorFrom(c), body.RequestID, body.Response); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) GetDriverBus(c *gin.Context) {
	bus, err := ctl.Locations.DriverBus(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}
