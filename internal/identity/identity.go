// Package identity は認証済み呼び出し元の正規化された表現と、
// 複数トークン発行者に対するBearerトークン検証を提供する。
//
// 検証済みのサブジェクトはTTL付きキャッシュに保持し、
// 発行者のユーザー参照APIへの繰り返し呼び出しを避ける。
package identity

// Role は組織メンバーシップにおける粗い役割を表す。
// ゲートウェイの役割チェックは早期失敗のための粗いゲートであり、
// 最終的なアクセス判断はサブジェクトIDを受け取ったバックエンドが行う。
type Role string

const (
	// RoleAdmin はプラットフォーム管理者。
	RoleAdmin Role = "admin"
	// RoleOwner は組織のオーナー。
	RoleOwner Role = "owner"
	// RoleMember は組織の一般メンバー。
	RoleMember Role = "member"
	// RoleRecruiter はリクルーター。
	RoleRecruiter Role = "recruiter"
	// RoleCandidate は候補者。
	RoleCandidate Role = "candidate"
)

// Membership は呼び出し元が属する組織のメンバーシップ。
type Membership struct {
	// ID はメンバーシップの一意識別子。
	ID string `json:"id"`
	// OrganizationID は所属組織の識別子。
	OrganizationID string `json:"organization_id"`
	// OrganizationName は所属組織の表示名。
	OrganizationName string `json:"organization_name"`
	// Role は組織内での役割。
	Role Role `json:"role"`
}

// Identity は認証済み呼び出し元の正規化された表現。
// リクエストスコープで生成・破棄される。キャッシュから再構築された場合、
// Membershipsは空であり、必要な呼び出し元は再解決しなければならない。
type Identity struct {
	// SubjectID は外部IDプロバイダーにおけるサブジェクト識別子。
	SubjectID string `json:"subject_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name"`
	// SourceApp はトークンを発行したクライアントアプリケーション名。
	SourceApp string `json:"source_app"`
	// Memberships は組織メンバーシップの一覧。
	Memberships []Membership `json:"memberships,omitempty"`
}

// HasAnyRole はいずれかのメンバーシップが指定された役割集合に含まれるかを判定する。
func (i *Identity) HasAnyRole(roles []Role) bool {
	for _, m := range i.Memberships {
		for _, r := range roles {
			if m.Role == r {
				return true
			}
		}
	}
	return false
}

// PrimaryOrganizationID は最初のメンバーシップの組織IDを返す。
// メンバーシップが無い場合は空文字列を返す。
func (i *Identity) PrimaryOrganizationID() string {
	if len(i.Memberships) == 0 {
		return ""
	}
	return i.Memberships[0].OrganizationID
}
