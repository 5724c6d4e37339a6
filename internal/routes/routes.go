package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telehealth-server/internal/config"
	"telehealth-server/internal/handlers"
	"telehealth-server/internal/middleware"
	"telehealth-server/internal/services"
)

// SetupRoutes configures the application routes. A nil gatherer serves the
// default Prometheus registry on /metrics.
func SetupRoutes(router *gin.Engine, svc *services.Services, cfg *config.Config, gatherer prometheus.Gatherer) {
	// Initialize handlers
	doctorHandler := handlers.NewDoctorHandler(svc.Directory, svc.Booking)
	appointmentHandler := handlers.NewAppointmentHandler(svc.Booking)
	availabilityHandler := handlers.NewAvailabilityHandler(svc.Availability, cfg.Location())
	payoutHandler := handlers.NewPayoutHandler(svc.Payout, svc.Ledger)

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", doctorHandler.GetDoctors)
			doctorRoutes.GET("/:id", doctorHandler.GetDoctorByID)
			doctorRoutes.GET("/:id/slots", doctorHandler.GetAvailableSlots)
		}

		// Role checks happen in the services, which own the caller lookup.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.POST("/:id/token", appointmentHandler.GenerateVideoToken)
			appointmentRoutes.POST("/:id/video-session", appointmentHandler.CreateVideoSession)
		}

		private.PUT("/availability", availabilityHandler.SetAvailability)
		private.GET("/availability", availabilityHandler.GetAvailability)

		private.POST("/payouts", payoutHandler.RequestPayout)
		private.GET("/payouts", payoutHandler.GetPayouts)
		private.GET("/earnings", payoutHandler.GetEarnings)
		private.GET("/credits", payoutHandler.GetCredits)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
