package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Arena/internal/adapters/signal"
	"github.com/dkeye/Arena/internal/app/orch"
	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	tokenCookie  = "ct"
	tokenSession = "client_token"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable client token on the session and the
// ct cookie; the websocket controller uses it as player identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(tokenSession).(string)
		if token == "" {
			token, _ = c.Cookie(tokenCookie)
		}
		if token == "" || len(token) > domain.MaxUserIDLen {
			token = genClientToken()
		}
		if session.Get(tokenSession) != token {
			session.Set(tokenSession, token)
			if err := session.Save(); err != nil {
				log.Warn().Str("module", "adapters.http").Err(err).Msg("session save")
			}
		}
		c.SetCookie(tokenCookie, token, 3600*24*7, "/", "", false, true)
		c.Set(tokenSession, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
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

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ArenaSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.OptionsFrom(cfg), log.Logger)
	r.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString(tokenSession)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	h := &adminHandlers{rooms: o.Rooms}
	api := r.Group("/api")
	api.GET("/rooms", h.listRooms)
	api.GET("/stats", h.stats)
	api.DELETE("/rooms/:id", h.destroyRoom)

	return r
}
