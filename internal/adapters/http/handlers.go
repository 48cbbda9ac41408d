package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Tandem/internal/adapters/signal"
	"github.com/dkeye/Tandem/internal/app/orch"
	"github.com/dkeye/Tandem/internal/auth"
	"github.com/dkeye/Tandem/internal/config"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/dkeye/Tandem/internal/turn"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const aliasKey = "alias"

type handlers struct {
	cfg    *config.Config
	orch   *orch.Orchestrator
	turn   *turn.Issuer
	tokens *auth.Tokens
	signal *signal.SignalWSController
}

type HealthResponse struct {
	Status        string       `json:"status"`
	Timestamp     int64        `json:"timestamp"`
	Participants  int          `json:"participants"`
	Queue         int          `json:"queue"`
	Rooms         int          `json:"rooms"`
	UptimeSeconds float64      `json:"uptime"`
	Metrics       orch.Metrics `json:"metrics"`
}

type StatsResponse struct {
	orch.Stats
	UptimeSeconds float64 `json:"uptime"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	Alias     string    `json:"alias"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handlers) health(c *gin.Context) {
	st := h.orch.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UnixMilli(),
		Participants:  st.Online,
		Queue:         st.InQueue,
		Rooms:         st.ActiveRooms,
		UptimeSeconds: st.Uptime.Seconds(),
		Metrics:       st.Metrics,
	})
}

func (h *handlers) stats(c *gin.Context) {
	st := h.orch.Stats()
	c.JSON(http.StatusOK, StatsResponse{Stats: st, UptimeSeconds: st.Uptime.Seconds()})
}

func (h *handlers) turnCredentials(c *gin.Context) {
	servers, err := h.turn.ICEServers(c.GetString(clientTokenKey))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("turn credentials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue credentials"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"iceServers": servers,
		"ttl":        int(h.turn.TTL().Seconds()),
	})
}

// issueToken hands an anonymous client a signed token bound to its sticky alias.
func (h *handlers) issueToken(c *gin.Context) {
	alias := stickyAlias(c)
	token, claims, err := h.tokens.Issue(alias)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		Alias:     alias,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (h *handlers) websocket(ctx context.Context, c *gin.Context) {
	alias := stickyAlias(c)
	if h.cfg.Auth.Required {
		claims, err := h.tokens.Parse(bearerToken(c))
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("ws rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Alias != "" {
			alias = claims.Alias
		}
	}
	log.Debug().Str("module", "adapters.http").Str("ct", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
	h.signal.HandleSignal(ctx, c, alias)
}

// stickyAlias returns the alias remembered in the cookie session, assigning one on first use.
func stickyAlias(c *gin.Context) string {
	session := sessions.Default(c)
	if alias, ok := session.Get(aliasKey).(string); ok && alias != "" {
		return alias
	}
	alias := domain.NewAlias()
	session.Set(aliasKey, alias)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	return alias
}

func bearerToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	if tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return tok
	}
	return ""
}
