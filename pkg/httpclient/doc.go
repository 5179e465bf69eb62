// Package httpclient は外部サービスとのHTTP通信を行うクライアントを提供する。
//
// 認証プロバイダからの鍵セット（JWKS）の取得など、Gatewayが自ら発行する
// リクエストに使用する。転送対象のリクエストはこのクライアントを経由しない。
package httpclient
