package auth

import (
	"errors"
	"net/http"
)

// 認証失敗の分類。*Error の Kind として使用し、errors.Is で判定する。
var (
	// ErrMissingToken はAuthorizationヘッダーが無い、またはBearer形式でない場合のエラー。
	ErrMissingToken = errors.New("missing or invalid Authorization header")
	// ErrInvalidToken は署名・有効期限・issuer・audienceのいずれかの検証に失敗した場合のエラー。
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingKeyID はトークンヘッダーにkidが無い場合のエラー。
	ErrMissingKeyID = errors.New(`missing "kid" in token header`)
	// ErrKeyUnavailable は署名検証用の公開鍵を取得できなかった場合のエラー。
	ErrKeyUnavailable = errors.New("signing key unavailable")
)

// Error はトークン検証の失敗を表す。
type Error struct {
	// Kind は失敗の分類（ErrMissingToken など）。
	Kind error
	// Reason は失敗の詳細。
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Reason
}

// Unwrap は失敗の分類を返す。
func (e *Error) Unwrap() error {
	return e.Kind
}

// StatusCode はこのエラーに対応するHTTPステータスを返す。認証失敗はすべて401。
func (e *Error) StatusCode() int {
	return http.StatusUnauthorized
}

// Message はクライアントに返すメッセージを返す。
func (e *Error) Message() string {
	switch {
	case errors.Is(e.Kind, ErrMissingToken):
		return "Missing or invalid Authorization header"
	case errors.Is(e.Kind, ErrInvalidToken) && e.Reason != "":
		return "Invalid token: " + e.Reason
	case errors.Is(e.Kind, ErrKeyUnavailable):
		// 取得失敗の詳細は鍵の提供元の応答を含むためログにのみ出力する
		return "Invalid token: " + ErrKeyUnavailable.Error()
	default:
		return "Invalid token: " + e.Error()
	}
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// invalidToken は検証ライブラリのエラーをErrInvalidTokenに分類する。
func invalidToken(err error) *Error {
	if err == nil {
		return newError(ErrInvalidToken, "token is not valid")
	}
	return newError(ErrInvalidToken, err.Error())
}
