package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telehealth-server/internal/apperr"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    apperr.Kind `json:"code,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, code apperr.Kind, errorMessage string) {
	c.JSON(statusCode, ResponseData{
		Status:  statusCode,
		Message: "An error occurred",
		Error:   errorMessage,
		Code:    code,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, apperr.KindValidation, errorMessage)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, apperr.KindUnauthorized, errorMessage)
}

// statusByKind maps failure kinds to HTTP status codes.
var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized:        http.StatusUnauthorized,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindNotConfigured:       http.StatusNotFound,
	apperr.KindInsufficientCredits: http.StatusPaymentRequired,
	apperr.KindSlotUnavailable:     http.StatusConflict,
	apperr.KindPendingPayoutExists: http.StatusConflict,
	apperr.KindNoCredits:           http.StatusUnprocessableEntity,
	apperr.KindNotScheduled:        http.StatusConflict,
	apperr.KindTooEarly:            http.StatusForbidden,
	apperr.KindAppointmentEnded:    http.StatusGone,
	apperr.KindVideoUnavailable:    http.StatusServiceUnavailable,
	apperr.KindVideoProvider:       http.StatusBadGateway,
	apperr.KindLedgerFailure:       http.StatusInternalServerError,
	apperr.KindInternal:            http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := statusByKind[apperr.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError writes err using its kind. Internal causes are attached to the
// gin context for the request logger and never sent to the client.
func RespondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(err)
	message := apperr.MessageOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if kind == apperr.KindInternal {
			message = "internal server error"
		}
	}
	Error(c, status, kind, message)
}
