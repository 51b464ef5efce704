package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/LJTian/NoticeWatch/internal/api"
	"github.com/LJTian/NoticeWatch/internal/collector"
	"github.com/LJTian/NoticeWatch/internal/config"
	"github.com/LJTian/NoticeWatch/internal/logging"
	"github.com/LJTian/NoticeWatch/internal/notifier"
	"github.com/LJTian/NoticeWatch/internal/runner"
	"github.com/LJTian/NoticeWatch/internal/storage"
)

// HTTP 入口：查询已通知记录，并允许外部任务通过 POST /api/v1/run 触发一轮检查
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	n, err := notifier.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init notifier failed")
	}

	store, err := storage.NewStore(cfg.DatabaseURL, cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("init store failed")
	}
	defer store.Close()

	// 启动时先建表，列表接口不依赖首轮运行
	if err := store.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	fetcher := collector.NewPageFetcher(cfg.SourceURL, cfg.FetchTimeout)
	rn := runner.New(fetcher, store, n)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, rn)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Info().Str("addr", addr).Str("source", cfg.SourceURL).Str("notifier", n.Name()).Msg("starting api server")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
}
