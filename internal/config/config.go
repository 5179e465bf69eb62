package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AuthMode はトークン検証方式を表す。
type AuthMode string

const (
	// AuthModeSharedSecret は共有シークレット（HMAC）による検証方式。
	AuthModeSharedSecret AuthMode = "shared-secret"
	// AuthModeRemoteKey はリモートの鍵セット（JWKS）から取得したRSA公開鍵による検証方式。
	AuthModeRemoteKey AuthMode = "remote-key"
)

// Service はルーティング先サービスの設定。
type Service struct {
	// Name はx-service-targetヘッダーで指定するサービス識別子。
	Name string `mapstructure:"name"`
	// URL は転送先のベースURL（scheme+host+port）。
	URL string `mapstructure:"url"`
}

// SharedSecret は共有シークレット方式の設定。
type SharedSecret struct {
	Secret   string
	Issuer   string
	Audience string
}

// RemoteKey はリモート鍵方式の設定。
type RemoteKey struct {
	// Domain は鍵セットを提供する認証プロバイダのドメイン。
	Domain string
	// JWKSURL は鍵セットのURL。
	JWKSURL string
	Issuer  string
	// Audience はトークンのaudクレームに含まれるべき値。
	Audience string
	// CacheMaxAge は取得した公開鍵をキャッシュする期間。
	CacheMaxAge time.Duration
	// RequestsPerMinute は鍵セット取得の1分あたりの上限回数。
	RequestsPerMinute int
}

// Auth は認証設定。Modeによって SharedSecret か RemoteKey のどちらか一方が使われる。
type Auth struct {
	Mode         AuthMode
	SharedSecret SharedSecret
	RemoteKey    RemoteKey
}

// Config はGatewayプロセス全体の設定。起動時に一度だけ構築し、以後は変更しない。
type Config struct {
	// Port はリッスンポート。
	Port string
	// Auth はトークン検証の設定。
	Auth Auth
	// Services はルーティングテーブル。定義順を保持する。
	Services []Service
	// PublicRoutes は認証を免除するパス。
	PublicRoutes []string
	// UpstreamTimeout は転送先のレスポンスヘッダーを待つ最大時間。
	UpstreamTimeout time.Duration
	// ShutdownTimeout はグレースフルシャットダウンの最大待ち時間。
	ShutdownTimeout time.Duration
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string
	// LogFormat はログの出力形式（json, console）。
	LogFormat string
}

// DefaultServices は設定ファイルでサービスが定義されない場合のルーティングテーブル。
var DefaultServices = []Service{
	{Name: "Customer-Management-Service", URL: "http://customer-management-service:3001"},
	{Name: "Order-Management-Service", URL: "http://order-management-service:3002"},
	{Name: "Production-Tracking-Service", URL: "http://production-tracking-service:3003"},
	{Name: "Production-Management-Service", URL: "http://production-management-service:3004"},
	{Name: "Inventory-Management-Service", URL: "http://inventory-management-service:3005"},
	{Name: "Platform-Insights-Service", URL: "http://platform-insights-service:3006"},
	{Name: "Platform-Payment-Service", URL: "http://platform-payment-service:3007"},
	{Name: "Platform-Masterdata-Service", URL: "http://platform-masterdata-service:3008"},
	{Name: "Platform-Gateway-Service", URL: "http://platform-gateway-service:3009"},
	{Name: "Platform-Esuite-Service (CDC)", URL: "http://platform-esuite-service:3010"},
	{Name: "Platform-Config-Service", URL: "http://platform-config-service:3011"},
}

// DefaultPublicRoutes はログインやトークン更新など、認証なしで到達できるパス。
var DefaultPublicRoutes = []string{
	"/auth/login",
	"/auth/refresh",
	"/auth/forgot-password",
	"/auth/reset-password",
}

// envBindings は設定キーと環境変数の対応。
var envBindings = map[string]string{
	"port":                                "PORT",
	"auth.mode":                           "AUTH_MODE",
	"auth.shared_secret.secret":           "JWT_SECRET",
	"auth.shared_secret.issuer":           "JWT_ISSUER",
	"auth.shared_secret.audience":         "JWT_AUDIENCE",
	"auth.remote_key.domain":              "AUTH0_DOMAIN",
	"auth.remote_key.audience":            "AUTH0_AUDIENCE",
	"auth.remote_key.issuer":              "AUTH0_ISSUER",
	"auth.remote_key.jwks_url":            "JWKS_URL",
	"auth.remote_key.cache_max_age":       "JWKS_CACHE_MAX_AGE",
	"auth.remote_key.requests_per_minute": "JWKS_REQUESTS_PER_MINUTE",
	"public_routes":                       "PUBLIC_ROUTES",
	"upstream_timeout":                    "UPSTREAM_TIMEOUT",
	"shutdown_timeout":                    "SHUTDOWN_TIMEOUT",
	"log.level":                           "LOG_LEVEL",
	"log.format":                          "LOG_FORMAT",
}

// Load は設定ファイル（任意）と環境変数から設定を読み込み、検証する。
// pathが空の場合は環境変数とデフォルト値のみを使用する。環境変数は設定ファイルより優先される。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("port", "4000")
	v.SetDefault("auth.remote_key.cache_max_age", 10*time.Minute)
	v.SetDefault("auth.remote_key.requests_per_minute", 10)
	v.SetDefault("upstream_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数のバインドに失敗: %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	var services []Service
	if err := v.UnmarshalKey("services", &services); err != nil {
		return nil, fmt.Errorf("servicesの読み込みに失敗: %w", err)
	}
	if len(services) == 0 {
		services = append([]Service(nil), DefaultServices...)
	}

	publicRoutes := stringList(v.Get("public_routes"))
	if !v.IsSet("public_routes") {
		publicRoutes = append([]string(nil), DefaultPublicRoutes...)
	}

	cfg := &Config{
		Port: v.GetString("port"),
		Auth: Auth{
			Mode: AuthMode(strings.TrimSpace(v.GetString("auth.mode"))),
			SharedSecret: SharedSecret{
				Secret:   v.GetString("auth.shared_secret.secret"),
				Issuer:   v.GetString("auth.shared_secret.issuer"),
				Audience: v.GetString("auth.shared_secret.audience"),
			},
			RemoteKey: RemoteKey{
				Domain:            strings.TrimSpace(v.GetString("auth.remote_key.domain")),
				JWKSURL:           v.GetString("auth.remote_key.jwks_url"),
				Issuer:            v.GetString("auth.remote_key.issuer"),
				Audience:          v.GetString("auth.remote_key.audience"),
				CacheMaxAge:       v.GetDuration("auth.remote_key.cache_max_age"),
				RequestsPerMinute: v.GetInt("auth.remote_key.requests_per_minute"),
			},
		},
		Services:        services,
		PublicRoutes:    publicRoutes,
		UpstreamTimeout: v.GetDuration("upstream_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDerivedDefaults は他の設定値から導出されるデフォルト値を補完する。
func (c *Config) applyDerivedDefaults() {
	if c.Auth.Mode == "" {
		if c.Auth.RemoteKey.Domain != "" {
			c.Auth.Mode = AuthModeRemoteKey
		} else {
			c.Auth.Mode = AuthModeSharedSecret
		}
	}

	rk := &c.Auth.RemoteKey
	if rk.Domain != "" {
		if rk.Issuer == "" {
			rk.Issuer = fmt.Sprintf("https://%s/", rk.Domain)
		}
		if rk.JWKSURL == "" {
			rk.JWKSURL = fmt.Sprintf("https://%s/.well-known/jwks.json", rk.Domain)
		}
	}
}

// Validate は設定の必須項目と整合性を検証する。
// 不備はすべてまとめて返す。1つでもあればプロセスは起動してはならない。
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("portが設定されていません"))
	}

	switch c.Auth.Mode {
	case AuthModeSharedSecret:
		ss := c.Auth.SharedSecret
		if ss.Secret == "" {
			errs = append(errs, errors.New("JWT_SECRETが設定されていません"))
		}
		if ss.Issuer == "" {
			errs = append(errs, errors.New("JWT_ISSUERが設定されていません"))
		}
		if ss.Audience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCEが設定されていません"))
		}
	case AuthModeRemoteKey:
		rk := c.Auth.RemoteKey
		if rk.Domain == "" && rk.JWKSURL == "" {
			errs = append(errs, errors.New("AUTH0_DOMAINが設定されていません"))
		}
		if rk.Audience == "" {
			errs = append(errs, errors.New("AUTH0_AUDIENCEが設定されていません"))
		}
		if rk.Issuer == "" {
			errs = append(errs, errors.New("AUTH0_ISSUERが設定されていません"))
		}
		if rk.JWKSURL != "" {
			if err := validateBaseURL(rk.JWKSURL); err != nil {
				errs = append(errs, fmt.Errorf("JWKS_URLが不正です: %w", err))
			}
		}
		if rk.CacheMaxAge <= 0 {
			errs = append(errs, errors.New("JWKS_CACHE_MAX_AGEは正の値である必要があります"))
		}
		if rk.RequestsPerMinute <= 0 {
			errs = append(errs, errors.New("JWKS_REQUESTS_PER_MINUTEは正の値である必要があります"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知のAUTH_MODEです: %q", c.Auth.Mode))
	}

	if len(c.Services) == 0 {
		errs = append(errs, errors.New("servicesが1件も定義されていません"))
	}
	seen := make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" {
			errs = append(errs, errors.New("サービス名が空です"))
			continue
		}
		if _, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("サービス名が重複しています: %s", s.Name))
		}
		seen[s.Name] = struct{}{}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("サービスのURLが設定されていません: %s", s.Name))
			continue
		}
		if err := validateBaseURL(s.URL); err != nil {
			errs = append(errs, fmt.Errorf("サービスのURLが不正です: %s: %w", s.Name, err))
		}
	}

	for _, r := range c.PublicRoutes {
		if !strings.HasPrefix(r, "/") {
			errs = append(errs, fmt.Errorf("公開ルートは/で始まる必要があります: %q", r))
		}
	}

	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUTは正の値である必要があります"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUTは正の値である必要があります"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// validateBaseURL はhttp(s)の絶対URLであることを検証する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("schemeはhttpまたはhttpsである必要があります: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("hostがありません: %q", raw)
	}
	return nil
}

// stringList は環境変数のカンマ区切り文字列と設定ファイルのリストの両方を文字列スライスに変換する。
func stringList(v any) []string {
	var items []string
	switch t := v.(type) {
	case string:
		items = strings.Split(t, ",")
	case []string:
		items = t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				items = append(items, s)
			}
		}
	}

	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
