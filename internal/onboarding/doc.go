// Package onboarding は複数のバックエンドを横断してアカウントを実体化する
// オンボーディングSagaを提供する。
//
// 候補者・リクルーター・事業者の3フローがあり、それぞれ依存順に
// リソースを作成する。各ステップは「取得してから作成する」冪等な設計であり、
// 永続的なSagaログは持たない。プロセス障害からの回復は同じエンドポイントを
// 同じアイデンティティで再実行することで収束する。
//
// 補助的なステップ（サブスクリプション有効化、通知送信等）の失敗は
// Sagaを中断せず、結果のブール値として呼び出し元へ明示的に報告される。
package onboarding
