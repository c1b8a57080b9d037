// Package registry はバックエンド名からHTTPクライアントを解決するサービスレジストリを提供する。
//
// バックエンド名は閉じた列挙型として定義し、文字列の打ち間違いによる
// 実行時の解決失敗を起動時に検出できるようにする。レジストリは起動時に
// 構築された後は読み取り専用として扱う。
package registry

import (
	"errors"
	"fmt"

	"github.com/nao1215/hirehub/pkg/httpclient"
)

// Backend はバックエンドサービスの名前を表す閉じた列挙型。
type Backend string

const (
	// BackendIdentity はユーザー・組織・メンバーシップを管理するサービス。
	BackendIdentity Backend = "identity"
	// BackendATS は求人・候補者・応募・成約を管理するサービス。
	BackendATS Backend = "ats"
	// BackendNetwork はリクルーターネットワークを管理するサービス。
	BackendNetwork Backend = "network"
	// BackendBilling は請求プロファイル・プラン・サブスクリプションを管理するサービス。
	BackendBilling Backend = "billing"
	// BackendNotification は通知配信を管理するサービス。
	BackendNotification Backend = "notification"
	// BackendDocument は書類（履歴書等）を管理するサービス。
	BackendDocument Backend = "document"
	// BackendAutomation はワークフロー自動化を管理するサービス。
	BackendAutomation Backend = "automation"
	// BackendChat はチャットメッセージを管理するサービス。
	BackendChat Backend = "chat"
	// BackendSearch は横断検索を提供するサービス。
	BackendSearch Backend = "search"
	// BackendContent は公開コンテンツページを管理するサービス。
	BackendContent Backend = "content"
)

// All は定義済みのすべてのバックエンド名を返す。
func All() []Backend {
	return []Backend{
		BackendIdentity,
		BackendATS,
		BackendNetwork,
		BackendBilling,
		BackendNotification,
		BackendDocument,
		BackendAutomation,
		BackendChat,
		BackendSearch,
		BackendContent,
	}
}

// Valid はバックエンド名が定義済みかどうかを判定する。
func (b Backend) Valid() bool {
	for _, known := range All() {
		if b == known {
			return true
		}
	}
	return false
}

// ErrNotRegistered は未登録のバックエンド名が解決されたことを表す。
// これは起動時の設定ミスであり、リクエストごとに回復すべきエラーではない。
var ErrNotRegistered = errors.New("バックエンドが登録されていません")

// Registry はバックエンド名とHTTPクライアントの対応表。
// 起動時にすべてのバックエンドを登録した後は読み取り専用として扱う。
type Registry struct {
	// clients はバックエンド名からクライアントへの対応表。
	clients map[Backend]*httpclient.Client
}

// New は空のサービスレジストリを生成する。
func New() *Registry {
	return &Registry{
		clients: make(map[Backend]*httpclient.Client),
	}
}

// Register はバックエンドのクライアントを登録する。
// 未定義のバックエンド名を渡した場合はエラーを返す。
func (r *Registry) Register(backend Backend, client *httpclient.Client) error {
	if !backend.Valid() {
		return fmt.Errorf("未定義のバックエンド名です: %q", backend)
	}
	r.clients[backend] = client
	return nil
}

// Get は指定されたバックエンドのクライアントを返す。
// 未登録の場合はErrNotRegisteredを返す。これは起動時の配線ミスを意味するため、
// 呼び出し元は起動を中断すべきである。
func (r *Registry) Get(backend Backend) (*httpclient.Client, error) {
	client, ok := r.clients[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, backend)
	}
	return client, nil
}
