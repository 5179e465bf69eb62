package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/servicegate/internal/auth"
	"github.com/nao1215/servicegate/pkg/middleware"
)

// HeaderUserID は認証済みユーザーのsubクレームを転送先に伝えるヘッダー。
const HeaderUserID = "X-User-ID"

// newTransport は転送先との通信に使うTransportを生成する。
// レスポンスヘッダーをtimeout以上待った場合はタイムアウトとして扱う。
func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = timeout
	t.MaxIdleConnsPerHost = 32
	return t
}

// newUpstream はrouteに転送するReverseProxyを生成する。
// パス、クエリ、メソッド、ボディはそのまま転送し、Hostヘッダーは転送先に書き換える。
func newUpstream(route *Route, transport http.RoundTripper, logger *zap.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(route.Target)
			pr.SetXForwarded()
			// クライアントが送ったX-User-IDは信用しない
			pr.Out.Header.Del(HeaderUserID)
			if claims, ok := auth.ClaimsFromContext(pr.In.Context()); ok {
				if sub := claims.Subject(); sub != "" {
					pr.Out.Header.Set(HeaderUserID, sub)
				}
			}
		},
		Transport:      transport,
		ModifyResponse: stripCORSHeaders,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			rerr := &RoutingError{
				Kind:    ErrUpstreamUnavailable,
				Service: route.Name,
				Timeout: isTimeout(err),
				Cause:   err,
			}
			fields := []zap.Field{
				zap.String("service", route.Name),
				zap.String("upstream", route.Target.String()),
				zap.String("path", r.URL.Path),
				zap.String("request_id", r.Header.Get(middleware.HeaderRequestID)),
				zap.Error(err),
			}
			if errors.Is(err, context.Canceled) {
				// クライアントが切断済みのためレスポンスは届かない
				logger.Debug("クライアント切断により転送を中止", fields...)
			} else {
				logger.Warn("転送先サービスとの通信に失敗", fields...)
			}
			http.Error(w, rerr.Message(), rerr.StatusCode())
		},
	}
}

// stripCORSHeaders は転送先が付与したCORSヘッダーを取り除く。
// CORSヘッダーはGatewayが付与したものだけをクライアントに返す。
func stripCORSHeaders(resp *http.Response) error {
	for name := range resp.Header {
		if strings.HasPrefix(name, "Access-Control-") {
			resp.Header.Del(name)
		}
	}
	return nil
}

// isTimeout は転送エラーがタイムアウトによるものかを返す。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
