package handlers

import (
	"github.com/gin-gonic/gin"

	"telehealth-server/internal/services"
	"telehealth-server/internal/utils"
)

// DoctorHandler serves the doctor directory and slot listings.
type DoctorHandler struct {
	Directory *services.DirectoryService
	Booking   *services.BookingService
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(directory *services.DirectoryService, booking *services.BookingService) *DoctorHandler {
	return &DoctorHandler{Directory: directory, Booking: booking}
}

// GetDoctors lists verified doctors, optionally filtered by ?specialty=.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Directory.ListDoctors(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctors retrieved successfully", doctors)
}

// GetDoctorByID returns one verified doctor.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	doctor, err := h.Directory.GetDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctor retrieved successfully", doctor)
}

// GetAvailableSlots lists the doctor's free slots grouped by day.
func (h *DoctorHandler) GetAvailableSlots(c *gin.Context) {
	days, err := h.Booking.GetAvailableSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Available slots retrieved successfully", gin.H{"days": days})
}
