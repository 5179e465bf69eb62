package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/servicegate/internal/auth"
	"github.com/nao1215/servicegate/internal/config"
	"github.com/nao1215/servicegate/pkg/middleware"
)

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// routes はサービス識別子から転送先を引くテーブル。
	routes *RouteTable
	// upstreams はサービス識別子ごとのリバースプロキシ。
	upstreams map[string]*httputil.ReverseProxy
	// validator はAuthorizationヘッダーのトークンを検証する。
	validator auth.Validator
	// publicRoutes は認証を免除するパス。
	publicRoutes []string
	// shutdownTimeout はグレースフルシャットダウンの最大待ち時間。
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config, validator auth.Validator, logger *zap.Logger) (*Server, error) {
	if validator == nil {
		return nil, errors.New("validatorが指定されていません")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	routes, err := NewRouteTable(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("ルーティングテーブルの構築に失敗: %w", err)
	}

	transport := newTransport(cfg.UpstreamTimeout)
	upstreams := make(map[string]*httputil.ReverseProxy, len(cfg.Services))
	for _, name := range routes.Names() {
		route, err := routes.Resolve(name)
		if err != nil {
			// 転送先の無いサービスはリクエスト時にUnmappedServiceとして扱う
			continue
		}
		upstreams[name] = newUpstream(route, transport, logger)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.CORS())

	s := &Server{
		router:          router,
		port:            cfg.Port,
		routes:          routes,
		upstreams:       upstreams,
		validator:       validator,
		publicRoutes:    append([]string(nil), cfg.PublicRoutes...),
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes はルーティングを設定する。
// 転送先はパスではなくx-service-targetヘッダーで決まるため、全リクエストを1つのハンドラで受ける。
func (s *Server) setupRoutes() {
	s.router.NoRoute(s.handleDispatch())
}

// Handler はGatewayのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Info("Gatewayサービスを起動します",
			zap.String("addr", srv.Addr),
			zap.Strings("services", s.routes.Names()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		s.logger.Info("Gatewayサービスを停止します")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
