package auth

import "context"

// Claims は検証済みトークンのクレーム。リクエストの処理中だけ保持する。
type Claims map[string]any

// Subject はsubクレームを返す。
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// claimsKey はコンテキストにクレームを格納するためのキー。
type claimsKey struct{}

// WithClaims はコンテキストに検証済みクレームを設定する。
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext はコンテキストから検証済みクレームを取り出す。
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok
}
