package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/havenlist/authcore/internal/config"
	"github.com/havenlist/authcore/internal/logger"
	"github.com/havenlist/authcore/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, Service: "authcore"})
	defer logger.Sync()

	srv, err := server.New(cfg)
	if err != nil {
		logger.L().Fatal("server init failed", zap.Error(err))
	}

	if err := srv.Start(); err != nil {
		logger.L().Fatal("server failed", zap.Error(err))
	}
}
