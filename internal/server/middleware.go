package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/sessions"
	"github.com/USA-RedDragon/crashula/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

func applyMiddleware(r *gin.Engine, config *config.Config, otelComponent string, deps Dependencies) {
	r.Use(gin.Recovery())

	r.TrustedPlatform = "X-Real-IP"

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowWildcard = true
	if len(config.HTTP.CORSHosts) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = config.HTTP.CORSHosts
	}
	r.Use(cors.New(corsConfig))

	err := r.SetTrustedProxies(config.HTTP.TrustedProxies)
	if err != nil {
		slog.Error("Failed to set trusted proxies", "error", err.Error())
	}

	if config.HTTP.Tracing.Enabled {
		r.Use(otelgin.Middleware(otelComponent))
		r.Use(tracingProvider(config))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithSpanID:        config.HTTP.Tracing.Enabled,
		WithTraceID:       config.HTTP.Tracing.Enabled,
		DefaultLevel:      slog.LevelInfo,
		ClientErrorLevel:  slog.LevelWarn,
		ServerErrorLevel:  slog.LevelError,
		WithRequestHeader: false,
	}))

	r.Use(func(c *gin.Context) {
		c.Set("config", config)
		c.Set("db", deps.DB)
		c.Set("metrics", deps.Metrics)
		c.Set("events", deps.Events)
		c.Set("storage", deps.Storage)
		c.Set("revoker", deps.Revoker)
		c.Next()
	})
}

func tracingProvider(config *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.HTTP.Tracing.OTLPEndpoint == "" {
			c.Next()
			return
		}
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.path", c.Request.URL.Path),
			)
		}
		c.Next()
		// the session is resolved further down the chain
		if user, ok := c.Get("user"); ok && span.IsRecording() {
			if user, ok := user.(*models.User); ok {
				span.SetAttributes(attribute.String("crashula.username", user.Username))
			}
		}
	}
}

// loadSession resolves a valid, unrevoked session cookie into the "user" and
// "session" context keys. A bad cookie is cleared and the request continues
// anonymously.
func loadSession(config *config.Config, db *gorm.DB, revoker sessions.Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessions.CookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}

		claims, err := utils.VerifyJWT(config.Session.Secret, cookie)
		if err != nil {
			slog.Warn("Discarding invalid session", "error", err)
			sessions.ClearCookie(c, config.HTTP.SecureCookies)
			c.Next()
			return
		}

		revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			slog.Error("Failed to check session revocation", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if revoked {
			sessions.ClearCookie(c, config.HTTP.SecureCookies)
			c.Next()
			return
		}

		userID, _ := claims.UserID()
		user, err := models.FindUserByID(db, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				slog.Error("Failed to load session user", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			sessions.ClearCookie(c, config.HTTP.SecureCookies)
			c.Next()
			return
		}

		c.Set("user", &user)
		c.Set("session", claims)
		c.Next()
	}
}

// loginURL keeps slashes readable in the next parameter.
func loginURL(requestURI string) string {
	return "/login/?next=" + strings.ReplaceAll(url.QueryEscape(requestURI), "%2F", "/")
}

// requireLogin redirects anonymous requests to the login page.
func requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("user"); !ok {
			c.Redirect(http.StatusFound, loginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

func requireLoginJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("user"); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// uploadLimit caps the request body a little above the configured attachment
// size to leave room for multipart framing.
func uploadLimit(config *config.Config) gin.HandlerFunc {
	const multipartOverhead = 64 << 10
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.Persistence.Uploads.MaxSize+multipartOverhead)
		c.Next()
	}
}
