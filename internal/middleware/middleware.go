package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"festival/internal/auth"
	"festival/internal/logger"
	"festival/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Ключи gin.Context для аутентифицированного пользователя
const (
	UserIDKey    = "user_id"
	PrincipalKey = "principal"
)

const requestIDHeader = "X-Request-ID"

// AdminChecker проверяет роль пользователя; реализуется service.AuthService
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// TokenParser проверяет access token; реализуется auth.TokenIssuer
type TokenParser interface {
	Parse(raw string) (*auth.Principal, error)
}

// PrincipalFromContext возвращает пользователя, выставленного Auth или OptionalAuth
func PrincipalFromContext(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID берет X-Request-ID из запроса или создает новый и кладет его в контекст
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = logger.NewRequestID()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status/100)+"xx").
			Observe(latency.Seconds())

		if status < 400 {
			return
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, "error", c.Errors.String())
		}

		log := logger.WithContext(c.Request.Context())
		if status >= 500 {
			log.Error("Request completed with error", logFields...)
		} else {
			log.Warn("Request rejected", logFields...)
		}
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
	})
}

// Auth требует Bearer токен
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, tokens) {
			c.Header("WWW-Authenticate", `Bearer realm="festival"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// OptionalAuth выставляет пользователя, если токен есть; без токена запрос анонимный.
// Невалидный токен все равно отклоняется.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c) != "" && !authenticate(c, tokens) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin ставится после Auth; роль перечитывается на каждый запрос
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		isAdmin, err := checker.IsAdmin(c.Request.Context(), p.UserID)
		if err != nil {
			logger.WithContext(c.Request.Context()).Error("Failed to check admin role", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens TokenParser) bool {
	raw := bearerToken(c)
	if raw == "" {
		return false
	}

	p, err := tokens.Parse(raw)
	if err != nil {
		slog.Debug("Rejected access token", "error", err, "path", c.Request.URL.Path)
		return false
	}

	c.Set(UserIDKey, p.UserID)
	c.Set(PrincipalKey, p)
	c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), p.UserID))
	return true
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
