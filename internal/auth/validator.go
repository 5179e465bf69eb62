package auth

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/nao1215/servicegate/internal/config"
	"github.com/nao1215/servicegate/pkg/httpclient"
)

// Validator はAuthorizationヘッダーの値を検証し、検証済みクレームを返す。
// 失敗時は *Error を返す。
type Validator interface {
	Validate(ctx context.Context, rawHeader string) (Claims, error)
}

// New は設定で選択された方式のValidatorを生成する。
func New(cfg config.Auth, logger *zap.Logger) (Validator, error) {
	switch cfg.Mode {
	case config.AuthModeSharedSecret:
		ss := cfg.SharedSecret
		return NewSharedSecret(ss.Secret, ss.Issuer, ss.Audience), nil
	case config.AuthModeRemoteKey:
		rk := cfg.RemoteKey
		u, err := url.Parse(rk.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("JWKS URLの解析に失敗: %w", err)
		}
		client := httpclient.New(u.Scheme + "://" + u.Host)
		keys := NewKeyCache(client, u.RequestURI(), rk.CacheMaxAge, rk.RequestsPerMinute, logger)
		return NewRemoteKey(keys, rk.Issuer, rk.Audience), nil
	default:
		return nil, fmt.Errorf("未知の認証方式です: %q", cfg.Mode)
	}
}
