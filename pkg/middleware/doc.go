// Package middleware はゲートウェイの全リクエストに適用する共通ミドルウェアを提供する。
//
// 相関IDの割り当てとレイテンシログ、認証ゲート（公開・Webhook・内部サービス
// 向けのバイパス規則を含む）、Redisを共有ストアとするレートリミット、
// パニックリカバリ、CORS設定を含む。
package middleware
