package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// corsAllowedHeaders はクライアントが送信できるリクエストヘッダー。
	corsAllowedHeaders = "Origin, X-Requested-With, Content-Type, Accept, Authorization, x-service-target, x-internal-request"
	// corsAllowedMethods はクライアントが使用できるHTTPメソッド。
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// CORS は全レスポンスにクロスオリジン許可ヘッダーを付与するGinミドルウェアを返す。
// リクエストのOriginをそのまま許可し、Originが無い場合はワイルドカードを返す。
// プリフライト（OPTIONS）は200で即座に応答し、後続のハンドラには渡さない。
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		} else {
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowedMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
