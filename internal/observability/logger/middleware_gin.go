package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// MiddlewareConfig controls access logging.
type MiddlewareConfig struct {
	// Logger defaults to zap.L().
	Logger *zap.Logger
	Debug  bool
	// Classify maps a handler error to its public error type and code.
	Classify func(err error) (string, string)
}

// GinMiddleware assigns a request id and writes one access log entry per
// request. Shop probes and static uploads are logged at debug level.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), id))

		c.Next()

		base := cfg.Logger
		if base == nil {
			base = zap.L()
		}
		log := WithContext(c.Request.Context(), base)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if strings.HasPrefix(route, "/api/admin") {
			fields = append(fields, zap.Bool("admin", true))
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("resource_id", id))
		}

		var errType string
		if last := c.Errors.Last(); last != nil {
			var code string
			if cfg.Classify != nil {
				errType, code = cfg.Classify(last.Err)
			}
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", code))
			if cfg.Debug {
				fields = append(fields, zap.NamedError("cause", last.Err))
			}
		}

		if ce := log.Check(accessLevel(c.Request.URL.Path, status, errType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

// accessLevel keeps client mistakes such as a malformed checkout at info and
// reserves warn for refused requests (auth, rate limit, not found).
func accessLevel(path string, status int, errType string) zapcore.Level {
	switch {
	case path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/uploads/"):
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest && errType != "invalid_request":
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
