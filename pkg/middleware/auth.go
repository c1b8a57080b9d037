package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/hirehub/internal/identity"
)

// HeaderInternalServiceKey は信頼された内部サービスを識別する共有鍵ヘッダー。
const HeaderInternalServiceKey = "X-Internal-Service-Key"

// contextKeyIdentity はGinコンテキストに検証済みアイデンティティを格納するためのキー。
const contextKeyIdentity = "identity"

// AuthConfig は認証ゲートの設定。
type AuthConfig struct {
	// Verifier はBearerトークンの検証器。
	Verifier *identity.Verifier
	// InternalServiceKey は内部サービス向けの共有鍵。空の場合この経路は無効。
	InternalServiceKey string
	// SkipPrefixes は認証を完全にスキップするパスプレフィックス。
	// ヘルスチェック、ドキュメント、署名検証で保護されるWebhookパスが該当する。
	SkipPrefixes []string
	// OptionalAuthPrefixes は認証を試行するが失敗しても middleware では拒否しない
	// パスプレフィックス。公開の求人・リクルーター一覧等が該当する。
	// トークンが有効ならアイデンティティをコンテキストに付与する。
	OptionalAuthPrefixes []string
}

// Auth は認証ゲートのGinミドルウェアを返す。
//
// バイパス規則の適用順:
//  1. SkipPrefixes配下は無条件で通過する。
//  2. 有効な内部サービス鍵を持つリクエストは通過する（定数時間比較）。
//  3. Authorizationヘッダーがあれば検証を試み、成功したらアイデンティティを付与する。
//  4. OptionalAuthPrefixes配下は検証失敗を握りつぶして通過する。
//  5. それ以外の /api/ 配下はアイデンティティ必須。無ければ401で拒否する。
func Auth(cfg AuthConfig) gin.HandlerFunc {
	internalKey := []byte(cfg.InternalServiceKey)

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		if len(internalKey) > 0 {
			provided := []byte(c.GetHeader(HeaderInternalServiceKey))
			if len(provided) > 0 && subtle.ConstantTimeCompare(provided, internalKey) == 1 {
				c.Next()
				return
			}
		}

		optional := false
		for _, prefix := range cfg.OptionalAuthPrefixes {
			if strings.HasPrefix(path, prefix) {
				optional = true
				break
			}
		}

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			id, err := cfg.Verifier.VerifyWithCorrelation(c.Request.Context(), authHeader, GetCorrelationID(c))
			if err == nil {
				c.Set(contextKeyIdentity, id)
			} else if !optional {
				abortWithAuthError(c)
				return
			}
		}

		if optional || !strings.HasPrefix(path, "/api/") {
			c.Next()
			return
		}

		if _, ok := GetIdentity(c); !ok {
			abortWithAuthError(c)
			return
		}
		c.Next()
	}
}

// abortWithAuthError は401でリクエストを中断する。
func abortWithAuthError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "認証が必要です",
	})
}

// GetIdentity はGinコンテキストから検証済みアイデンティティを取得する。
// Authミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	v, exists := c.Get(contextKeyIdentity)
	if !exists {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok
}

// SetIdentity は検証済みアイデンティティをコンテキストに設定する。
// テストおよびハンドラ単体での利用向け。
func SetIdentity(c *gin.Context, id *identity.Identity) {
	c.Set(contextKeyIdentity, id)
}
