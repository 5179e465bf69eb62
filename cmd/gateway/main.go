// API Gatewayのエントリポイント。
// x-service-targetヘッダーに従って内部サービスへリクエストを転送する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nao1215/servicegate/internal/auth"
	"github.com/nao1215/servicegate/internal/config"
	"github.com/nao1215/servicegate/internal/gateway"
	"github.com/nao1215/servicegate/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	validator, err := auth.New(cfg.Auth, logger.Named("auth"))
	if err != nil {
		return fmt.Errorf("トークン検証の初期化に失敗: %w", err)
	}
	logger.Info("トークン検証方式", zap.String("mode", string(cfg.Auth.Mode)))

	server, err := gateway.NewServer(cfg, validator, logger)
	if err != nil {
		return fmt.Errorf("Gatewayサーバーの初期化に失敗: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
