package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/perse-cms/perse/internal/database"
	"github.com/perse-cms/perse/internal/middleware"
	"github.com/perse-cms/perse/internal/modules/content/view"
	jwtpkg "github.com/perse-cms/perse/internal/pkg/jwt"
	"github.com/perse-cms/perse/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	apiPrefix     = "/api/v1"
	healthTimeout = 2 * time.Second
)

func (a *App) registerRoutes(signer *jwtpkg.Signer) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group(apiPrefix, middleware.OptionalAuth(signer))
	api.GET("", a.info)
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/health", a.health)

	mw := view.Middlewares{Auth: middleware.AdminAuth(signer, a.cfg.IsDev())}
	opts := []view.Option{view.WithTimeout(a.cfg.RequestTimeout)}
	if a.redis != nil {
		mw.Public = append(mw.Public, middleware.RateLimit(
			a.redis.Raw(), middleware.DefaultRateLimitMax, middleware.DefaultRateLimitWindow, a.logger.Named("ratelimit"),
		))
		mw.Write = append(mw.Write, middleware.Idempotence(a.redis.Raw()))
		if a.cfg.Cache.Enable {
			opts = append(opts, view.WithCache(view.NewCache(a.redis, a.cfg.Cache.TTL, a.logger.Named("view-cache"))))
		}
	}

	svc := view.NewService(view.NewGormStore(a.db), a.logger.Named("view"), opts...)
	view.NewHandler(svc).RegisterRoutes(api, mw)
}

func (a *App) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":   "perse",
		"env":    a.cfg.Env,
		"uptime": humanizeDuration(time.Since(a.started)),
	})
}

// health pings every backing service; any failure turns the whole report degraded.
func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	healthy := true
	checks := gin.H{"database": "ok", "redis": "disabled"}
	if err := database.Ping(ctx, a.db); err != nil {
		healthy = false
		checks["database"] = "unreachable"
		a.logger.Warn("health: database ping failed", zap.Error(err))
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Ping(ctx); err != nil {
			healthy = false
			checks["redis"] = "unreachable"
			a.logger.Warn("health: redis ping failed", zap.Error(err))
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
