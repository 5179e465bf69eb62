package auth

import (
	"context"
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
)

// rsaMethods はリモート鍵方式で受け付ける署名アルゴリズム。非対称署名のみ。
var rsaMethods = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodPS384.Alg(),
	jwt.SigningMethodPS512.Alg(),
}

// KeySource はkidに対応するRSA公開鍵を返す。
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// RemoteKey はリモートの鍵セットから取得した公開鍵でトークンを検証する。
type RemoteKey struct {
	keys   KeySource
	parser *jwt.Parser
}

// NewRemoteKey はリモート鍵方式のValidatorを生成する。
func NewRemoteKey(keys KeySource, issuer, audience string) *RemoteKey {
	return &RemoteKey{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(rsaMethods),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
		),
	}
}

// Validate はトークンヘッダーのkidで公開鍵を取得し、署名とクレームを検証する。
// kidが無い場合は鍵の取得を行わずに失敗する。
func (r *RemoteKey) Validate(ctx context.Context, rawHeader string) (Claims, error) {
	tokenString, err := BearerToken(rawHeader)
	if err != nil {
		return nil, err
	}

	// 署名検証の前にヘッダーだけを読み、kidの有無を確認する
	unverified, _, err := r.parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, invalidToken(err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, newError(ErrMissingKeyID, "")
	}

	var keyErr error
	claims := jwt.MapClaims{}
	token, err := r.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		key, err := r.keys.PublicKey(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	})
	if keyErr != nil {
		return nil, newError(ErrKeyUnavailable, keyErr.Error())
	}
	if err != nil || !token.Valid {
		return nil, invalidToken(err)
	}
	return Claims(claims), nil
}
