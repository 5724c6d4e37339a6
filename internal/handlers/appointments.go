package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"telehealth-server/internal/services"
	"telehealth-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Booking *services.BookingService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(booking *services.BookingService) *AppointmentHandler {
	return &AppointmentHandler{Booking: booking}
}

// CreateAppointmentRequest represents the request body for booking an
// appointment. The patient is the caller.
type CreateAppointmentRequest struct {
	DoctorID    string    `json:"doctorId" binding:"required"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
	Description string    `json:"description" binding:"max=2000"`
}

// CreateAppointment books a slot for the calling patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}

	appt, err := h.Booking.BookAppointment(c.Request.Context(), caller, services.BookingRequest{
		DoctorID:    req.DoctorID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointmentsForUser lists the caller's appointments, as patient or
// doctor.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	appts, err := h.Booking.ListAppointments(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments retrieved successfully", appts)
}

// CreateVideoSession provisions the video session of an appointment that was
// booked without one.
func (h *AppointmentHandler) CreateVideoSession(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	appt, err := h.Booking.ProvisionVideoSession(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Video session ready", appt)
}

// GenerateVideoToken issues a join token for a participant.
func (h *AppointmentHandler) GenerateVideoToken(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	token, err := h.Booking.GenerateJoinToken(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Video token generated successfully", token)
}
