package main

import (
	"github.com/Mikhail-2byte/Dnd-version2/internal/cache"
	"github.com/Mikhail-2byte/Dnd-version2/internal/config"
	"github.com/Mikhail-2byte/Dnd-version2/internal/db"
	clog "github.com/Mikhail-2byte/Dnd-version2/internal/log"
	"github.com/Mikhail-2byte/Dnd-version2/internal/server"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/Mikhail-2byte/Dnd-version2/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库与 Redis 并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	rdb, err := cache.Dial(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis dial")
	}

	coord := ws.NewCoordinator(service.NewGameService(gdb), cache.New(rdb), cfg.StoreTimeout)
	r := server.SetupRouter(cfg, gdb, coord)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
