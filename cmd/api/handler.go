package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/delivery"
	authUsecase "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/usecase"
	calendarDelivery "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	calendarHandler *calendarDelivery.CalendarHandler
	gatherer        prometheus.Gatherer
	logger          zerolog.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, calendarHandler *calendarDelivery.CalendarHandler, gatherer prometheus.Gatherer, logger zerolog.Logger) *Handler {
	return &Handler{
		authUsecase:     authUc,
		calendarHandler: calendarHandler,
		gatherer:        gatherer,
		logger:          logger,
	}
}

// Engine builds the gin router with CORS and every route mounted.
func (h *Handler) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, "+delivery.RefreshHeader+", accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Expose-Headers", delivery.NewAccessTokenHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.calendarHandler, h.gatherer, h.logger)
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	h.logger.Info().Msg("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := h.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = h.logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
