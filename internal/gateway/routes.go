package gateway

import (
	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/internal/resource"
	"github.com/nao1215/hirehub/pkg/registry"
)

// anyAuthenticated は匿名以外のすべての役割。
// 空集合は「匿名を含めて開放」を意味するため、認証のみ要求したい操作には
// 全役割を列挙する。
var anyAuthenticated = []identity.Role{
	identity.RoleAdmin,
	identity.RoleOwner,
	identity.RoleMember,
	identity.RoleRecruiter,
	identity.RoleCandidate,
}

// resourceDefinitions はゲートウェイが公開するリソースの宣言的テーブル。
// 新しいリソースはここに1エントリ追加するだけで5つのCRUDエンドポイントが生える。
func resourceDefinitions() []resource.Definition {
	orgStaff := []identity.Role{identity.RoleAdmin, identity.RoleOwner, identity.RoleMember}
	recruiting := []identity.Role{identity.RoleAdmin, identity.RoleRecruiter}

	return []resource.Definition{
		{
			// 求人は一覧・取得を匿名に開放し、編集は組織スタッフに限る
			Name:        "jobs",
			Backend:     registry.BackendATS,
			Path:        "/jobs",
			ServicePath: "/v1/jobs",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationCreate: orgStaff,
				resource.OperationUpdate: orgStaff,
				resource.OperationDelete: orgStaff,
			},
		},
		{
			Name:        "companies",
			Backend:     registry.BackendATS,
			Path:        "/companies",
			ServicePath: "/v1/companies",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationCreate: {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationUpdate: {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			Name:        "candidates",
			Backend:     registry.BackendATS,
			Path:        "/candidates",
			ServicePath: "/v1/candidates",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   recruiting,
				resource.OperationGet:    recruiting,
				resource.OperationCreate: recruiting,
				resource.OperationUpdate: recruiting,
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			Name:        "applications",
			Backend:     registry.BackendATS,
			Path:        "/applications",
			ServicePath: "/v1/applications",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   anyAuthenticated,
				resource.OperationGet:    anyAuthenticated,
				resource.OperationCreate: {identity.RoleAdmin, identity.RoleRecruiter, identity.RoleCandidate},
				resource.OperationUpdate: recruiting,
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			Name:        "placements",
			Backend:     registry.BackendATS,
			Path:        "/placements",
			ServicePath: "/v1/placements",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   recruiting,
				resource.OperationGet:    recruiting,
				resource.OperationCreate: recruiting,
				resource.OperationUpdate: recruiting,
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			// リクルーターディレクトリは一覧・取得を匿名に開放する
			Name:        "recruiters",
			Backend:     registry.BackendNetwork,
			Path:        "/recruiters",
			ServicePath: "/v1/recruiters",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationCreate: recruiting,
				resource.OperationUpdate: recruiting,
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			// プランは料金ページから匿名で参照される
			Name:        "plans",
			Backend:     registry.BackendBilling,
			Path:        "/plans",
			ServicePath: "/v1/plans",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationCreate: {identity.RoleAdmin},
				resource.OperationUpdate: {identity.RoleAdmin},
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			Name:        "subscriptions",
			Backend:     registry.BackendBilling,
			Path:        "/subscriptions",
			ServicePath: "/v1/subscriptions",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationGet:    {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationCreate: {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationUpdate: {identity.RoleAdmin, identity.RoleOwner},
				resource.OperationDelete: {identity.RoleAdmin, identity.RoleOwner},
			},
		},
		{
			Name:        "notifications",
			Backend:     registry.BackendNotification,
			Path:        "/notifications",
			ServicePath: "/v1/notifications",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   anyAuthenticated,
				resource.OperationGet:    anyAuthenticated,
				resource.OperationCreate: {identity.RoleAdmin},
				resource.OperationUpdate: anyAuthenticated,
				resource.OperationDelete: anyAuthenticated,
			},
		},
		{
			Name:        "documents",
			Backend:     registry.BackendDocument,
			Path:        "/documents",
			ServicePath: "/v1/documents",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   anyAuthenticated,
				resource.OperationGet:    anyAuthenticated,
				resource.OperationCreate: anyAuthenticated,
				resource.OperationUpdate: anyAuthenticated,
				resource.OperationDelete: anyAuthenticated,
			},
		},
		{
			// 公開コンテンツページは匿名で参照され、編集は運営に限る
			Name:        "pages",
			Backend:     registry.BackendContent,
			Path:        "/pages",
			ServicePath: "/v1/pages",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationCreate: {identity.RoleAdmin},
				resource.OperationUpdate: {identity.RoleAdmin},
				resource.OperationDelete: {identity.RoleAdmin},
			},
		},
		{
			Name:        "saved-searches",
			Backend:     registry.BackendSearch,
			Path:        "/saved-searches",
			ServicePath: "/v1/saved-searches",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   anyAuthenticated,
				resource.OperationGet:    anyAuthenticated,
				resource.OperationCreate: anyAuthenticated,
				resource.OperationUpdate: anyAuthenticated,
				resource.OperationDelete: anyAuthenticated,
			},
		},
		{
			Name:        "workflows",
			Backend:     registry.BackendAutomation,
			Path:        "/workflows",
			ServicePath: "/v1/workflows",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   orgStaff,
				resource.OperationGet:    orgStaff,
				resource.OperationCreate: orgStaff,
				resource.OperationUpdate: orgStaff,
				resource.OperationDelete: orgStaff,
			},
		},
		{
			Name:        "messages",
			Backend:     registry.BackendChat,
			Path:        "/messages",
			ServicePath: "/v1/messages",
			Roles: map[resource.Operation][]identity.Role{
				resource.OperationList:   anyAuthenticated,
				resource.OperationGet:    anyAuthenticated,
				resource.OperationCreate: anyAuthenticated,
				resource.OperationUpdate: anyAuthenticated,
				resource.OperationDelete: anyAuthenticated,
			},
		},
	}
}
