// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストID、アクセスログ、パニックリカバリ、CORS設定など、
// Gatewayの全リクエストに適用するミドルウェアを含む。
package middleware
