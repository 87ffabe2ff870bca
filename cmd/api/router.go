package api

import (
	"net/http"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/delivery"
	authUsecase "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/usecase"
	calendarDelivery "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, calendarHandler *calendarDelivery.CalendarHandler, gatherer prometheus.Gatherer, logger zerolog.Logger) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	requireAuth := delivery.AuthMiddleware(authUsecase, logger)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", requireAuth, authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Google redirects the browser here without our bearer token; the
		// signed state carries the user instead
		api.GET("/calendar/auth/callback", calendarHandler.Callback)

		// Calendar account routes (protected)
		calendar := api.Group("/calendar")
		calendar.Use(requireAuth)
		{
			calendar.GET("/auth-url", calendarHandler.GetAuthURL)
			calendar.GET("/emails", calendarHandler.GetConnectedEmails)
			calendar.DELETE("/emails/:email", calendarHandler.DisconnectEmail)
			calendar.POST("/emails/:email/sync", calendarHandler.SyncAccount)
		}

		// Event routes (protected)
		events := api.Group("/events")
		events.Use(requireAuth)
		{
			events.GET("/active", calendarHandler.GetActiveEvents)
			events.GET("/finished", calendarHandler.GetFinishedEvents)
			events.POST("", calendarHandler.AddEvent)
			events.GET("/:id", calendarHandler.GetEvent)
			events.DELETE("/:id", calendarHandler.DeleteEvent)
			events.GET("/:id/transcript", calendarHandler.GetTranscript)
		}

		meetings := api.Group("/meetings")
		meetings.Use(requireAuth)
		{
			meetings.POST("/join", calendarHandler.JoinMeeting)
		}
	}
}
