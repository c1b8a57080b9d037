// Package resource は宣言的なリソース定義から統一されたCRUDプロキシ
// エンドポイントを生成するフレームワークを提供する。
//
// 1つの定義からlist/get/create/update/deleteの5つのエンドポイントが導出され、
// それぞれが認証・粗い役割チェック・バックエンドへの転送・レスポンス整形を行う。
// リソース固有のビジネスロジックは定義に持ち込まない。
package resource

import (
	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/registry"
)

// Operation はリソースに対する標準操作を表す。
type Operation string

const (
	// OperationList は一覧取得。
	OperationList Operation = "list"
	// OperationGet は単一取得。
	OperationGet Operation = "get"
	// OperationCreate は新規作成。
	OperationCreate Operation = "create"
	// OperationUpdate は部分更新。
	OperationUpdate Operation = "update"
	// OperationDelete は削除。
	OperationDelete Operation = "delete"
)

// Definition はリソースの宣言的な定義。
// 1つの定義からちょうど5つのプロキシエンドポイントが生成される。
type Definition struct {
	// Name はリソース名（ログ用）。
	Name string
	// Backend は転送先のバックエンドサービス。
	Backend registry.Backend
	// Path はゲートウェイ上のベースパス（例: "/jobs"）。
	Path string
	// ServicePath はバックエンド上のベースパス。空の場合はPathと同じ。
	// ゲートウェイの公開パスとバックエンドの内部パスが異なる場合に指定する。
	ServicePath string
	// Roles は操作ごとに許可される役割の集合。
	// 操作のエントリが無い、または空の場合、その操作は認可チェックなしで
	// 匿名を含む任意の呼び出し元に開放される。
	Roles map[Operation][]identity.Role
}

// servicePath はバックエンド上のベースパスを返す。
func (d *Definition) servicePath() string {
	if d.ServicePath != "" {
		return d.ServicePath
	}
	return d.Path
}

// public は指定された操作が認可チェックなしで開放されているかを返す。
func (d *Definition) public(op Operation) bool {
	return len(d.Roles[op]) == 0
}

// PublicPrefixes はいずれかの操作が開放されているリソースの、
// ゲートウェイ上の完全パスプレフィックスを返す。
// 認証ミドルウェアのオプショナル認証許可リストの構築に使用する。
func PublicPrefixes(base string, defs []Definition) []string {
	var prefixes []string
	for i := range defs {
		d := &defs[i]
		for _, op := range []Operation{OperationList, OperationGet, OperationCreate, OperationUpdate, OperationDelete} {
			if d.public(op) {
				prefixes = append(prefixes, base+d.Path)
				break
			}
		}
	}
	return prefixes
}
