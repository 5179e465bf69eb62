package gateway

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nao1215/servicegate/internal/auth"
	"github.com/nao1215/servicegate/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret   = "gateway-test-secret"
	testIssuer   = "https://issuer.example.com/"
	testAudience = "https://api.example.com"
)

// echoResponse は転送先が受け取ったリクエストの内容。
type echoResponse struct {
	Method string              `json:"method"`
	Path   string              `json:"path"`
	Query  string              `json:"query"`
	Body   string              `json:"body"`
	Host   string              `json:"host"`
	Header map[string][]string `json:"header"`
}

// echoUpstream は受け取ったリクエストをJSONで返す転送先サービス。
type echoUpstream struct {
	*httptest.Server
	hits atomic.Int32
}

func newEchoUpstream(t *testing.T) *echoUpstream {
	t.Helper()

	u := &echoUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "echo")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(echoResponse{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
			Host:   r.Host,
			Header: r.Header,
		})
	}))
	t.Cleanup(u.Close)
	return u
}

// countingValidator は呼び出し回数を数えるValidator。
type countingValidator struct {
	next  auth.Validator
	calls atomic.Int32
}

func (v *countingValidator) Validate(ctx context.Context, rawHeader string) (auth.Claims, error) {
	v.calls.Add(1)
	return v.next.Validate(ctx, rawHeader)
}

// failingKeys は常に失敗するKeySource。
type failingKeys struct {
	err error
}

func (f failingKeys) PublicKey(context.Context, string) (*rsa.PublicKey, error) {
	return nil, f.err
}

// testConfig はservicesを転送先とするテスト用の設定を返す。
func testConfig(services ...config.Service) *config.Config {
	return &config.Config{
		Port:            "0",
		Services:        services,
		PublicRoutes:    append([]string(nil), config.DefaultPublicRoutes...),
		UpstreamTimeout: 2 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

// newTestServer は共有シークレット方式で検証するテスト用のGatewayサーバーを生成する。
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *countingValidator) {
	t.Helper()

	validator := &countingValidator{next: auth.NewSharedSecret(testSecret, testIssuer, testAudience)}
	s, err := NewServer(cfg, validator, zap.NewNop())
	require.NoError(t, err)
	return s, validator
}

// validToken は有効なBearerトークンを返す。
func validToken(t *testing.T, overrides jwt.MapClaims) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"aud": testAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

// serve はGatewayにリクエストを送信してレスポンスを返す。
// サーバー経由のリクエストと同じく、キャンセル可能なコンテキストを持たせる。
func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req.WithContext(ctx))
	return w
}

// decodeEcho は転送先のエコーレスポンスを解析する。
func decodeEcho(t *testing.T, w *httptest.ResponseRecorder) echoResponse {
	t.Helper()

	var got echoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}
