package http

import (
	"context"

	"github.com/dkeye/Tandem/internal/adapters/signal"
	"github.com/dkeye/Tandem/internal/app/orch"
	"github.com/dkeye/Tandem/internal/auth"
	"github.com/dkeye/Tandem/internal/config"
	"github.com/dkeye/Tandem/internal/turn"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionName = "TandemSessions"

// Deps are the collaborators the HTTP surface talks to.
type Deps struct {
	Orch   *orch.Orchestrator
	Turn   *turn.Issuer
	Tokens *auth.Tokens
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(OriginFilter(cfg.AllowedOrigins))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{
		cfg:    cfg,
		orch:   deps.Orch,
		turn:   deps.Turn,
		tokens: deps.Tokens,
		signal: signal.NewSignalWSController(deps.Orch, cfg),
	}

	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	r.GET("/turn-credentials", h.turnCredentials)
	r.POST("/auth/anonymous", h.issueToken)
	r.GET("/ws", func(c *gin.Context) {
		h.websocket(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Bool("auth", cfg.Auth.Required).Msg("router setup")
	return r
}
