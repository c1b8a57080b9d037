package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderCorrelationID はリクエストを複数サービス横断で追跡するための相関IDヘッダー。
const HeaderCorrelationID = "X-Correlation-ID"

// contextKeyCorrelationID はGinコンテキストに相関IDを格納するためのキー。
const contextKeyCorrelationID = "correlation_id"

// Correlation は相関IDの割り当てとレイテンシログを行うGinミドルウェアを返す。
//
// クライアントが相関IDを送ってきた場合はそれを引き継ぎ、無ければ生成する。
// 相関IDはレスポンスヘッダーにも設定され、エラー報告をログと突き合わせられる。
// skipLogPathsに含まれるパス（ヘルスチェック等の高頻度・低価値なエンドポイント）は
// アクセスログを出力しない。
func Correlation(skipLogPaths []string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipLogPaths))
	for _, p := range skipLogPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(contextKeyCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)

		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		log.Printf("[Access] %s %s status=%d latency=%s correlation_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), correlationID)
	}
}

// GetCorrelationID はGinコンテキストから相関IDを取得する。
// Correlationミドルウェアが事前に適用されている必要がある。
func GetCorrelationID(c *gin.Context) string {
	v, _ := c.Get(contextKeyCorrelationID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}
