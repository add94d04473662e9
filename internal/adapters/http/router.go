package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/adapters/ws"
	"github.com/immersivehub/orchestrator/internal/config"
	"github.com/immersivehub/orchestrator/internal/core"
	"github.com/immersivehub/orchestrator/internal/transport"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, orch *core.Orchestrator, pool *transport.Pool) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"orchestratorVersion": ctl.Version})
	})

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	admin := r.Group("/", gin.BasicAuth(gin.Accounts{cfg.AdminUser: cfg.AdminPassword}))
	if cfg.LogFolder != "" {
		admin.Static("/log", cfg.LogFolder)
	}
	admin.GET("/admin", func(c *gin.Context) {
		users, sessions := orch.Stats()
		c.JSON(http.StatusOK, gin.H{
			"orchestratorVersion": ctl.Version,
			"users":               users,
			"sessions":            sessions,
			"workers":             pool.WorkerCount(),
		})
	})

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	return r
}
