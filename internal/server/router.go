package server

import (
	"net/http"
	"time"

	"github.com/Mikhail-2byte/Dnd-version2/internal/auth"
	"github.com/Mikhail-2byte/Dnd-version2/internal/config"
	"github.com/Mikhail-2byte/Dnd-version2/internal/metrics"
	"github.com/Mikhail-2byte/Dnd-version2/internal/mw"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/Mikhail-2byte/Dnd-version2/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, coord *ws.Coordinator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	userSvc := service.NewUserService(db, cfg)
	gameSvc := service.NewGameService(db)
	charSvc := service.NewCharacterService(db)
	h := NewHandler(userSvc, gameSvc, charSvc, coord)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.GET("/auth/me", h.Me)

	authed.POST("/games", h.CreateGame)
	authed.GET("/games/invite/:code", h.GameByInvite)
	authed.POST("/games/:id/join", h.JoinGame)
	authed.GET("/games/:id", h.GameInfo)
	authed.GET("/games/:id/tokens", h.ListTokens)
	authed.POST("/games/:id/tokens", h.CreateToken)
	authed.PUT("/games/:id/tokens/:tokenID", h.UpdateToken)
	authed.DELETE("/games/:id/tokens/:tokenID", h.DeleteToken)

	authed.POST("/characters", h.CreateCharacter)
	authed.GET("/characters", h.ListCharacters)
	authed.GET("/characters/:id", h.GetCharacter)
	authed.PUT("/characters/:id", h.UpdateCharacter)
	authed.DELETE("/characters/:id", h.DeleteCharacter)

	authed.POST("/dice/roll", h.RollDice)

	r.GET("/ws", ws.Serve(coord, db, cfg))

	return r
}
