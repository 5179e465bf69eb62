package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://tenant.example.com/"
	testAudience = "https://api.example.com"
	testSecret   = "test-secret-key-for-unit-tests"
)

// newRSAKey はテスト用のRSA鍵ペアを生成する。
func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// jwksDocument はkidごとの公開鍵から鍵セットのJSONを生成する。
func jwksDocument(t *testing.T, keys map[string]any) []byte {
	t.Helper()

	set := jwk.NewSet()
	for kid, pub := range keys {
		key, err := jwk.FromRaw(pub)
		require.NoError(t, err)
		require.NoError(t, key.Set(jwk.KeyIDKey, kid))
		if _, ok := pub.(*rsa.PublicKey); ok {
			require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
		}
		require.NoError(t, set.AddKey(key))
	}

	body, err := json.Marshal(set)
	require.NoError(t, err)
	return body
}

// newECPublicKey はテスト用のEC公開鍵を生成する。
func newECPublicKey(t *testing.T) *ecdsa.PublicKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &key.PublicKey
}

// validClaims は有効期限内で正しいissuer/audienceを持つクレームを返す。
func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"aud": testAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

// signHS はHS256で署名したトークンを返す。
func signHS(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// signRS はRS256で署名し、kidが空でなければヘッダーに設定したトークンを返す。
func signRS(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// fakeFetcher は固定の鍵セットを返すDocumentFetcher。
type fakeFetcher struct {
	body  []byte
	err   error
	calls atomic.Int32
	// started は最初の取得開始時に閉じられる（nilなら使わない）。
	started chan struct{}
	// release が非nilの場合、閉じられるまで取得を待たせる。
	release chan struct{}
}

// Get はDocumentFetcherを実装する。
func (f *fakeFetcher) Get(ctx context.Context, _ string) ([]byte, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

// signHSWithKid はkidヘッダー付きでHS256署名したトークンを返す。
func signHSWithKid(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
