// Package httpapi exposes the card-actions lookup over HTTP, plus liveness
// and readiness probes.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexacard/cardactions/cards"
	cbus "github.com/nexacard/cardactions/contract/bus"
	berr "github.com/nexacard/cardactions/contract/errors"
)

// TraceHeader carries the caller-supplied trace id into published events.
const TraceHeader = "X-Trace-Id"

// New builds the router. The bus is only consulted for readiness.
func New(svc *cards.Service, bus cbus.EventBus, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", readiness(bus))

	api := r.Group("/api")
	api.GET("/users/:userId/cards/:cardNumber/actions", getActions(svc))

	return r
}

func getActions(svc *cards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		cardNumber := c.Param("cardNumber")
		traceID := c.GetHeader(TraceHeader)

		res, err := svc.AllowedActions(c.Request.Context(), userID, cardNumber, traceID)
		if err != nil {
			status := http.StatusInternalServerError

			switch {
			case errors.Is(err, berr.ErrInvalidInput):
				status = http.StatusBadRequest
			case errors.Is(err, cards.ErrCardNotFound):
				status = http.StatusNotFound
			case errors.Is(err, cards.ErrAccessDenied):
				status = http.StatusForbidden
			}

			c.JSON(status, gin.H{"error": err.Error()})

			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// readiness maps bus health to the probe contract: healthy and degraded both
// serve traffic, unhealthy does not.
func readiness(bus cbus.EventBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		hr, ok := bus.(cbus.HealthReporter)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		h := hr.Health(c.Request.Context())

		status := http.StatusOK
		if h.Status == cbus.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    string(h.Status),
			"provider":  h.Provider,
			"connected": h.Connected,
			"lastError": h.LastError,
		})
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
