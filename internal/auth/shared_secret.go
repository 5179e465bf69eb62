package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// hmacMethods は共有シークレット方式で受け付ける署名アルゴリズム。
var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// SharedSecret は共有シークレット（HMAC）でトークンを検証する。
type SharedSecret struct {
	secret []byte
	parser *jwt.Parser
}

// NewSharedSecret は共有シークレット方式のValidatorを生成する。
// issuerとaudienceはトークンのiss/audクレームと一致しなければならない。
func NewSharedSecret(secret, issuer, audience string) *SharedSecret {
	return &SharedSecret{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods(hmacMethods),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
		),
	}
}

// Validate はBearerトークンの署名とクレームを検証する。
func (s *SharedSecret) Validate(_ context.Context, rawHeader string) (Claims, error) {
	tokenString, err := BearerToken(rawHeader)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, invalidToken(err)
	}
	return Claims(claims), nil
}
