// Package gateway はAPI Gatewayの内部実装を提供する。
//
// 外部からアクセス可能な唯一の入口として、x-service-targetヘッダーで指定された
// 内部サービスにリクエストを転送する。転送前にトークンを検証し、
// サービス間通信（x-internal-request）と公開ルートは検証を免除する。
// パスやボディは書き換えず、転送先のレスポンスをそのままクライアントに返す。
package gateway
