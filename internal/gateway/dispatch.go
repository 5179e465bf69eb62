package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/servicegate/internal/auth"
	"github.com/nao1215/servicegate/pkg/middleware"
)

const (
	// HeaderServiceTarget は転送先サービスを指定するヘッダー。
	HeaderServiceTarget = "x-service-target"
	// HeaderInternalRequest はサービス間通信であることを示すヘッダー。値が空でなければ認証を免除する。
	HeaderInternalRequest = "x-internal-request"
)

// handleDispatch は全リクエストを受け付け、x-service-targetで指定されたサービスに転送するハンドラを返す。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		normalizePath(c.Request)

		route, err := s.routes.Resolve(c.GetHeader(HeaderServiceTarget))
		if err != nil {
			s.abortRouting(c, err)
			return
		}

		if !s.isExempt(c.Request) {
			claims, err := s.validator.Validate(c.Request.Context(), c.GetHeader("Authorization"))
			if err != nil {
				s.abortAuth(c, route, err)
				return
			}
			c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		}

		s.upstreams[route.Name].ServeHTTP(c.Writer, c.Request)
		// ボディの無いレスポンスでもステータスを確定させる
		c.Writer.WriteHeaderNow()
	}
}

// isExempt はリクエストが認証を免除されるかを返す。
func (s *Server) isExempt(r *http.Request) bool {
	if r.Header.Get(HeaderInternalRequest) != "" {
		return true
	}
	return isPublicRoute(r.URL.Path, s.publicRoutes)
}

// abortRouting はルーティングの失敗をクライアントに返す。
func (s *Server) abortRouting(c *gin.Context, err error) {
	_ = c.Error(err)

	var rerr *RoutingError
	if !errors.As(err, &rerr) {
		c.String(http.StatusInternalServerError, "internal server error")
		c.Abort()
		return
	}

	if errors.Is(rerr, ErrUnknownService) {
		c.AbortWithStatusJSON(rerr.StatusCode(), gin.H{
			"error":         rerr.Message(),
			"validServices": s.routes.Names(),
		})
		return
	}
	if errors.Is(rerr, ErrUnmappedService) {
		s.logger.Error("サービスの転送先が設定されていません",
			zap.String("service", rerr.Service),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
	c.String(rerr.StatusCode(), rerr.Message())
	c.Abort()
}

// abortAuth は認証の失敗をクライアントに返す。
func (s *Server) abortAuth(c *gin.Context, route *Route, err error) {
	_ = c.Error(err)

	fields := []zap.Field{
		zap.String("service", route.Name),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	}

	var aerr *auth.Error
	if !errors.As(err, &aerr) {
		s.logger.Error("トークン検証で予期しないエラー", fields...)
		c.String(http.StatusUnauthorized, "Invalid token: "+err.Error())
		c.Abort()
		return
	}

	if errors.Is(aerr, auth.ErrKeyUnavailable) {
		s.logger.Warn("署名鍵を取得できないため認証に失敗", fields...)
	} else {
		s.logger.Info("認証に失敗", fields...)
	}
	c.String(aerr.StatusCode(), aerr.Message())
	c.Abort()
}
