// Package auth はBearerトークン（JWT）の検証を提供する。
//
// 検証方式は設定で1つだけ選択する。共有シークレット方式はHMAC署名と
// issuer/audienceを検証し、リモート鍵方式はトークンヘッダーのkidで
// 鍵セット（JWKS）から公開鍵を取得してRSA署名とissuer/audienceを検証する。
// 取得した公開鍵はプロセス内でkidごとにキャッシュされる。
package auth
