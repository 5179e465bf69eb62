package auth

import "strings"

// BearerToken は "Bearer <token>" 形式のAuthorizationヘッダー値からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(rawHeader string) (string, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(rawHeader), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", newError(ErrMissingToken, "")
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", newError(ErrMissingToken, "")
	}
	return token, nil
}
