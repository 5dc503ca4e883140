package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoconnect/internal/logger"
	"geoconnect/internal/models"
)

// Gin context keys the handlers read after the middleware chain ran.
const (
	TenantIDKey   = "tenant_id"
	CustomerIDKey = "customer_id"
)

// CORS handles cross-origin requests for the booking API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Tenant-ID, X-Customer-ID, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// RequestID assigns every request a correlation id, echoed back in the
// X-Request-ID header and attached to the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = logger.NewRequestID()
		}
		c.Header("X-Request-ID", reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Logger emits one structured line per completed request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		log := logger.WithContext(c.Request.Context())

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, "error", c.Errors.String())
		}

		if c.Writer.Status() >= 500 {
			log.Error("request completed", logFields...)
		} else {
			log.Info("request completed", logFields...)
		}
	}
}

// Recovery turns panics into 500 responses with a structured log line.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("panic recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorBody{
				Error: models.ErrorInfo{Code: "INTERNAL", Message: "internal server error"},
			})
		}
	})
}

// Tenant requires a valid X-Tenant-ID header and makes the tenant (and,
// when present, the X-Customer-ID) available to handlers and the logger.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorBody{
				Error: models.ErrorInfo{Code: "INVALID_TENANT", Message: "X-Tenant-ID header must be a valid UUID"},
			})
			return
		}
		c.Set(TenantIDKey, tenantID)

		if raw := c.GetHeader("X-Customer-ID"); raw != "" {
			if customerID, err := uuid.Parse(raw); err == nil {
				c.Set(CustomerIDKey, customerID)
			}
		}

		ctx := context.WithValue(c.Request.Context(), logger.TenantIDKey, tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantID returns the tenant set by the Tenant middleware.
func TenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// CustomerID returns the customer from X-Customer-ID, or uuid.Nil when
// the header was absent.
func CustomerID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(CustomerIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
