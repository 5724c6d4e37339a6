package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"telehealth-server/internal/scheduling"
	"telehealth-server/internal/services"
	"telehealth-server/internal/utils"
)

// AvailabilityHandler lets doctors manage their daily window.
type AvailabilityHandler struct {
	Availability *services.AvailabilityService
	Location     *time.Location
}

// NewAvailabilityHandler creates a new AvailabilityHandler. Clock times in
// requests are read in loc.
func NewAvailabilityHandler(availability *services.AvailabilityService, loc *time.Location) *AvailabilityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityHandler{Availability: availability, Location: loc}
}

// SetAvailabilityRequest takes "HH:MM" clock times or RFC3339 timestamps.
type SetAvailabilityRequest struct {
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

// SetAvailability replaces the calling doctor's window.
func (h *AvailabilityHandler) SetAvailability(c *gin.Context) {
	var req SetAvailabilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	start, err := scheduling.ParseClock(req.StartTime, h.Location)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	end, err := scheduling.ParseClock(req.EndTime, h.Location)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	a, err := h.Availability.SetAvailability(c.Request.Context(), caller, start, end)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Availability updated successfully", a)
}

// GetAvailability returns the calling doctor's window.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	a, err := h.Availability.GetAvailability(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Availability retrieved successfully", a)
}
