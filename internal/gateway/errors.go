package gateway

import (
	"errors"
	"net/http"
)

// ルーティング失敗の分類。*RoutingError の Kind として使用し、errors.Is で判定する。
var (
	// ErrMissingTarget はx-service-targetヘッダーが無い場合のエラー。
	ErrMissingTarget = errors.New("missing service target")
	// ErrUnknownService はx-service-targetがルーティングテーブルに無い場合のエラー。
	ErrUnknownService = errors.New("unknown service")
	// ErrUnmappedService はサービスは登録されているが転送先アドレスが無い場合のエラー。
	ErrUnmappedService = errors.New("service mapping not found")
	// ErrUpstreamUnavailable は転送先サービスと通信できない場合のエラー。
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// RoutingError はルーティングの失敗を表す。
type RoutingError struct {
	// Kind は失敗の分類（ErrMissingTarget など）。
	Kind error
	// Service はx-service-targetヘッダーの値。
	Service string
	// Timeout は転送先の応答待ちがタイムアウトしたかどうか（ErrUpstreamUnavailableのみ）。
	Timeout bool
	// Cause は下位のエラー。
	Cause error
}

// Error はerrorインターフェースを実装する。
func (e *RoutingError) Error() string {
	msg := e.Kind.Error()
	if e.Service != "" {
		msg += ": " + e.Service
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap は失敗の分類を返す。
func (e *RoutingError) Unwrap() error {
	return e.Kind
}

// StatusCode はこのエラーに対応するHTTPステータスを返す。
func (e *RoutingError) StatusCode() int {
	switch {
	case errors.Is(e.Kind, ErrMissingTarget), errors.Is(e.Kind, ErrUnknownService):
		return http.StatusBadRequest
	case errors.Is(e.Kind, ErrUpstreamUnavailable):
		if e.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message はクライアントに返すメッセージを返す。
func (e *RoutingError) Message() string {
	switch {
	case errors.Is(e.Kind, ErrMissingTarget):
		return "Missing " + HeaderServiceTarget + " header"
	case errors.Is(e.Kind, ErrUnknownService):
		return "Invalid service target: " + e.Service
	case errors.Is(e.Kind, ErrUnmappedService):
		return "Service mapping not found for: " + e.Service
	case errors.Is(e.Kind, ErrUpstreamUnavailable):
		if e.Timeout {
			return "Upstream service timed out: " + e.Service
		}
		return "Upstream service unavailable: " + e.Service
	default:
		return e.Error()
	}
}
