// Package config は環境変数からゲートウェイの設定を読み込む。
//
// バックエンドのベースURL、トークン発行者の秘密鍵、Redis接続先、
// CORSオリジン等の外部から供給される設定を1つの構造体にまとめる。
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/nao1215/hirehub/pkg/registry"
)

// IssuerTalentApp は候補者向けクライアントアプリケーションの発行者名。
const IssuerTalentApp = "talent-app"

// IssuerPartnerApp はリクルーター向けクライアントアプリケーションの発行者名。
const IssuerPartnerApp = "partner-app"

// Issuer はトークン発行者ごとの設定。
type Issuer struct {
	// Name は発行元クライアントアプリケーション名。
	Name string
	// Secret はHS256署名検証用の秘密鍵。
	Secret string
}

// Config はゲートウェイの起動設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// BackendURLs はバックエンドサービスごとのベースURL。
	BackendURLs map[registry.Backend]string
	// UserAPIURL はIDプロバイダーのユーザー参照APIのベースURL。
	// 2つのクライアントアプリケーションは同一のバックエンドを共有する。
	UserAPIURL string
	// Issuers は試行順に並んだトークン発行者の設定。
	Issuers []Issuer
	// RedisURL はレートリミットとイベントストリームに使用するRedisのURL。
	RedisURL string
	// AllowedOrigins はCORSで許可するオリジンの一覧。
	AllowedOrigins []string
	// InternalServiceKey は内部サービス認証用の共有鍵。
	InternalServiceKey string
	// AnonymousRateLimit は匿名リクエストの1分あたりの上限。
	AnonymousRateLimit int
}

// Load は環境変数から設定を読み込む。
// 未設定の項目はローカル開発向けのデフォルト値を使用する。
func Load() *Config {
	return &Config{
		Port: getEnvOr("PORT", "8080"),
		BackendURLs: map[registry.Backend]string{
			registry.BackendIdentity:     getEnvOr("IDENTITY_URL", "http://localhost:8081"),
			registry.BackendATS:          getEnvOr("ATS_URL", "http://localhost:8082"),
			registry.BackendNetwork:      getEnvOr("NETWORK_URL", "http://localhost:8083"),
			registry.BackendBilling:      getEnvOr("BILLING_URL", "http://localhost:8084"),
			registry.BackendNotification: getEnvOr("NOTIFICATION_URL", "http://localhost:8085"),
			registry.BackendDocument:     getEnvOr("DOCUMENT_URL", "http://localhost:8086"),
			registry.BackendAutomation:   getEnvOr("AUTOMATION_URL", "http://localhost:8087"),
			registry.BackendChat:         getEnvOr("CHAT_URL", "http://localhost:8088"),
			registry.BackendSearch:       getEnvOr("SEARCH_URL", "http://localhost:8089"),
			registry.BackendContent:      getEnvOr("CONTENT_URL", "http://localhost:8090"),
		},
		UserAPIURL: getEnvOr("USER_API_URL", "http://localhost:8091"),
		Issuers: []Issuer{
			{Name: IssuerTalentApp, Secret: getEnvOr("TALENT_APP_JWT_SECRET", "dev-talent-secret")},
			{Name: IssuerPartnerApp, Secret: getEnvOr("PARTNER_APP_JWT_SECRET", "dev-partner-secret")},
		},
		RedisURL:           getEnvOr("REDIS_URL", "redis://localhost:6379/0"),
		AllowedOrigins:     splitAndTrim(getEnvOr("ALLOWED_ORIGINS", "http://localhost:3000")),
		InternalServiceKey: os.Getenv("INTERNAL_SERVICE_KEY"),
		AnonymousRateLimit: getEnvIntOr("RATE_LIMIT_PER_MINUTE", 60),
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvIntOr は整数の環境変数を取得し、未設定または不正な場合はデフォルト値を返す。
func getEnvIntOr(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// splitAndTrim はカンマ区切りの文字列を分割して空白を除去する。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
