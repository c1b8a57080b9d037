package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// rateLimitWindow はレートリミットのスライディングウィンドウ幅。
const rateLimitWindow = time.Minute

// authenticatedMultiplier は認証済みリクエストに与える予算の倍率。
const authenticatedMultiplier = 5

// RateLimitConfig はレートリミットの設定。
type RateLimitConfig struct {
	// Client はカウンターを保持するRedisクライアント。
	// ゲートウェイを水平スケールしても制限が効くよう、全インスタンスで共有する。
	Client *redis.Client
	// AnonymousLimit は匿名リクエストの1分あたりの上限。
	// 認証済みリクエストはこの5倍の予算を持つ。
	AnonymousLimit int
	// ExemptPrefixes はレートリミットを適用しないパスプレフィックス（チャット等）。
	ExemptPrefixes []string
}

// RateLimit はスライディングウィンドウ方式のレートリミットを行うGinミドルウェアを返す。
//
// キーはBearerトークンが存在する場合はそのハッシュ（同一IPの別ユーザーが
// バケットを共有しないため）、無ければ送信元IPとする。
// Redisに到達できない場合はリクエストを拒否せず通過させる（フェイルオープン）。
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range cfg.ExemptPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		key, limit := bucketFor(c, cfg.AnonymousLimit)

		count, err := slidingWindowCount(c, cfg.Client, key)
		if err != nil {
			log.Printf("[RateLimit] カウンターの更新に失敗（フェイルオープン）: %v", err)
			c.Next()
			return
		}

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエストが多すぎます。しばらく待ってから再試行してください",
			})
			return
		}
		c.Next()
	}
}

// bucketFor はリクエストのレートリミットキーと予算を決定する。
func bucketFor(c *gin.Context, anonymousLimit int) (string, int) {
	authHeader := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(authHeader, "Bearer "); found && token != "" {
		sum := sha256.Sum256([]byte(token))
		return "ratelimit:token:" + hex.EncodeToString(sum[:16]), anonymousLimit * authenticatedMultiplier
	}
	return "ratelimit:ip:" + c.ClientIP(), anonymousLimit
}

// slidingWindowCount はZSETベースのスライディングウィンドウでカウントを更新・取得する。
func slidingWindowCount(c *gin.Context, client *redis.Client, key string) (int64, error) {
	ctx := c.Request.Context()
	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	pipe := client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.New().String()),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rateLimitWindow+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}
