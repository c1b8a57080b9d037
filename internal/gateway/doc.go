// Package gateway はHireHub API GatewayのHTTPサーバーを提供する。
//
// ゲートウェイは外部からアクセス可能な唯一のサービスであり、
// 認証・認可・レートリミット・相関ID付与を一手に引き受けたうえで
// リクエストを内部のバックエンドサービス群へ転送する。
// バックエンドは認証済みアイデンティティをヘッダーで受け取るだけでよい。
package gateway
