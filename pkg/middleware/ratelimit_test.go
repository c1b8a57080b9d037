package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// newRateLimitRouter はレートリミットを適用したテスト用ルーターを生成する。
func newRateLimitRouter(t *testing.T, cfg RateLimitConfig) *gin.Engine {
	t.Helper()

	router := gin.New()
	router.Use(RateLimit(cfg))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/api/v2/jobs", handler)
	router.GET("/api/v2/chat/messages", handler)
	return router
}

// newTestRedis はminiredisとそのクライアントを生成する。
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// doRequest は指定ヘッダー付きのGETリクエストを実行してステータスコードを返す。
func doRequest(router *gin.Engine, path, authHeader string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

// TestRateLimit はレートリミットの予算とキーの分離を検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("匿名リクエストが上限を超えると429になること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         newTestRedis(t),
			AnonymousLimit: 3,
		})

		for i := 0; i < 3; i++ {
			if code := doRequest(router, "/api/v2/jobs", ""); code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, code, http.StatusOK)
			}
		}
		if code := doRequest(router, "/api/v2/jobs", ""); code != http.StatusTooManyRequests {
			t.Errorf("上限超過後のステータスコード = %d, want %d", code, http.StatusTooManyRequests)
		}
	})

	t.Run("認証済みリクエストの予算が匿名の5倍であること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         newTestRedis(t),
			AnonymousLimit: 2,
		})

		// 匿名上限2に対して認証済みは10回まで通る
		for i := 0; i < 10; i++ {
			if code := doRequest(router, "/api/v2/jobs", "Bearer token-a"); code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, code, http.StatusOK)
			}
		}
		if code := doRequest(router, "/api/v2/jobs", "Bearer token-a"); code != http.StatusTooManyRequests {
			t.Errorf("上限超過後のステータスコード = %d, want %d", code, http.StatusTooManyRequests)
		}
	})

	t.Run("異なるトークンが独立したバケットを持つこと", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         newTestRedis(t),
			AnonymousLimit: 1,
		})

		// token-aの予算（1*5=5回）を使い切る
		for i := 0; i < 5; i++ {
			doRequest(router, "/api/v2/jobs", "Bearer token-a")
		}
		if code := doRequest(router, "/api/v2/jobs", "Bearer token-a"); code != http.StatusTooManyRequests {
			t.Fatalf("token-aの上限超過後のステータスコード = %d, want %d", code, http.StatusTooManyRequests)
		}

		// 同一IPでもtoken-bは独立の予算を持つ
		if code := doRequest(router, "/api/v2/jobs", "Bearer token-b"); code != http.StatusOK {
			t.Errorf("token-bのステータスコード = %d, want %d", code, http.StatusOK)
		}
	})

	t.Run("同一トークンの連続リクエストが1つのバケットを共有すること", func(t *testing.T) {
		t.Parallel()

		client := newTestRedis(t)
		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         client,
			AnonymousLimit: 1,
		})

		for i := 0; i < 5; i++ {
			doRequest(router, "/api/v2/jobs", "Bearer shared-token")
		}

		// バケットは1つだけ作成される
		keys := client.Keys(context.Background(), "ratelimit:token:*").Val()
		if len(keys) != 1 {
			t.Errorf("トークンバケット数 = %d, want 1: %v", len(keys), keys)
		}
	})

	t.Run("除外プレフィックスのパスが制限されないこと", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         newTestRedis(t),
			AnonymousLimit: 1,
			ExemptPrefixes: []string{"/api/v2/chat"},
		})

		for i := 0; i < 20; i++ {
			if code := doRequest(router, "/api/v2/chat/messages", ""); code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, code, http.StatusOK)
			}
		}
	})

	t.Run("Redisに到達できない場合にフェイルオープンすること", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { client.Close() })

		router := newRateLimitRouter(t, RateLimitConfig{
			Client:         client,
			AnonymousLimit: 1,
		})

		for i := 0; i < 5; i++ {
			if code := doRequest(router, "/api/v2/jobs", ""); code != http.StatusOK {
				t.Fatalf("フェイルオープン時のステータスコード = %d, want %d", code, http.StatusOK)
			}
		}
	})
}
