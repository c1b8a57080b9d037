// HireHub API Gatewayのエントリポイント。
// 認証・認可・レートリミット・バックエンドへのルーティングを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"log"

	"github.com/nao1215/hirehub/internal/config"
	"github.com/nao1215/hirehub/internal/gateway"
)

func main() {
	cfg := config.Load()

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
