package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tablebook-backend/config"
	"tablebook-backend/controllers"
	"tablebook-backend/utils"
)

// Dependencies are the handlers' collaborators, built in main.
type Dependencies struct {
	Config        config.Config
	Log           zerolog.Logger
	DB            controllers.Pinger
	Reservations  controllers.ReservationManager
	Overview      controllers.OverviewProvider
	Notifications controllers.NotificationSettings
	Verifier      controllers.SMTPVerifier
}

func SetupRouter(deps Dependencies) *gin.Engine {
	if !deps.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(corsConfig(deps.Config.CORSAllowedOrigins)))

	r.Use(config.PerformanceLogger(deps.Log))

	r.GET("/healthz", controllers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reservationController := controllers.NewReservationController(deps.Reservations, deps.Log)
	settingsController := controllers.NewSettingsController(deps.Notifications, deps.Verifier, deps.Log)
	dashboardController := controllers.NewDashboardController(deps.Overview, deps.Log)

	public := r.Group("/api/public")
	{
		public.POST("/reservations", reservationController.CreateReservation)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(deps.Config.JWTSecret))
	{
		reservations := api.Group("/reservations")
		{
			reservations.GET("", reservationController.GetReservations)
			reservations.GET("/calendar", reservationController.GetCalendar)
			reservations.GET("/:id", reservationController.GetReservation)
			reservations.PUT("/:id", reservationController.UpdateReservation)
			reservations.PATCH("/:id/status", reservationController.UpdateReservationStatus)
			reservations.DELETE("/:id", reservationController.DeleteReservation)
		}

		// Dashboard routes
		api.GET("/dashboard", dashboardController.GetDashboardOverview)

		// Settings routes
		settings := api.Group("/settings/booking-notifications")
		{
			settings.GET("", settingsController.GetBookingNotifications)
			settings.PUT("", settingsController.UpdateBookingNotifications)
			settings.POST("/verify", settingsController.VerifySMTP)
		}
	}

	return r
}

// corsConfig allows every origin without credentials when the list is empty
// or contains "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", config.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", config.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
