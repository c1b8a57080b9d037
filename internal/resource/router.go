package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/httpclient"
	"github.com/nao1215/hirehub/pkg/middleware"
	"github.com/nao1215/hirehub/pkg/registry"
)

// HeaderUserID はバックエンドに転送する呼び出し元のサブジェクトIDヘッダー。
const HeaderUserID = "X-User-ID"

// HeaderOrganizationID はバックエンドに転送する組織IDヘッダー。
const HeaderOrganizationID = "X-Organization-ID"

// MembershipResolver はサブジェクトIDから組織メンバーシップを解決する。
// メンバーシップは関係データに依存するため、ゲートウェイ自身は保持せず
// アイデンティティバックエンドへの side lookup で取得する。
type MembershipResolver interface {
	// Memberships は指定されたサブジェクトのメンバーシップ一覧を返す。
	Memberships(ctx context.Context, subjectID, correlationID string) ([]identity.Membership, error)
}

// Mount はリソース定義の一覧から5つずつのプロキシエンドポイントを生成して登録する。
// 各定義のバックエンドは登録時に解決され、未登録なら即座にエラーを返す
// （起動時の設定ミスであり、リクエスト時に回復すべきものではない）。
func Mount(group gin.IRouter, reg *registry.Registry, resolver MembershipResolver, defs []Definition) error {
	for i := range defs {
		d := defs[i]
		client, err := reg.Get(d.Backend)
		if err != nil {
			return fmt.Errorf("リソース %q のマウントに失敗: %w", d.Name, err)
		}

		sp := d.servicePath()
		group.GET(d.Path, proxyCollection(client, &d, resolver, OperationList, http.MethodGet, sp))
		group.GET(d.Path+"/:id", proxyItem(client, &d, resolver, OperationGet, http.MethodGet, sp))
		group.POST(d.Path, proxyCollection(client, &d, resolver, OperationCreate, http.MethodPost, sp))
		group.PATCH(d.Path+"/:id", proxyItem(client, &d, resolver, OperationUpdate, http.MethodPatch, sp))
		group.DELETE(d.Path+"/:id", proxyItem(client, &d, resolver, OperationDelete, http.MethodDelete, sp))
	}
	return nil
}

// proxyCollection はコレクションパス（/resources）への操作をプロキシするハンドラを返す。
func proxyCollection(client *httpclient.Client, d *Definition, resolver MembershipResolver, op Operation, method, servicePath string) gin.HandlerFunc {
	return proxy(client, d, resolver, op, method, func(_ *gin.Context) string {
		return servicePath
	})
}

// proxyItem は単一リソースパス（/resources/:id）への操作をプロキシするハンドラを返す。
func proxyItem(client *httpclient.Client, d *Definition, resolver MembershipResolver, op Operation, method, servicePath string) gin.HandlerFunc {
	return proxy(client, d, resolver, op, method, func(c *gin.Context) string {
		return servicePath + "/" + c.Param("id")
	})
}

// proxy は認可チェックとバックエンド転送を行う共通ハンドラを返す。
func proxy(client *httpclient.Client, d *Definition, resolver MembershipResolver, op Operation, method string, buildPath func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := middleware.GetCorrelationID(c)

		id, authorized := authorize(c, d, resolver, op, correlationID)
		if !authorized {
			return
		}

		opts := &httpclient.Options{
			CorrelationID: correlationID,
			Query:         queryMap(c),
			Headers:       identityHeaders(id),
		}

		resp, err := forward(c, client, method, buildPath(c), opts)
		if err != nil {
			writeBackendError(c, d.Name, correlationID, err)
			return
		}

		if resp.Raw != nil {
			c.Data(resp.StatusCode, "application/json", resp.Raw)
			return
		}
		c.Status(resp.StatusCode)
	}
}

// authorize は操作の役割チェックを行う。
// 役割が宣言されていない操作は匿名を含む任意の呼び出し元を許可する。
// 宣言されている場合、呼び出し元はいずれかの役割を持つメンバーシップが必要となる。
// メンバーシップが未解決（キャッシュ再構築など）の場合はside lookupで解決する。
//
// このチェックは早期失敗のための粗いゲートにすぎない。最終的なアクセススコープの
// 判断は、転送されたサブジェクトIDを受け取ったバックエンドが行う。
func authorize(c *gin.Context, d *Definition, resolver MembershipResolver, op Operation, correlationID string) (*identity.Identity, bool) {
	id, ok := middleware.GetIdentity(c)

	roles := d.Roles[op]
	if len(roles) == 0 {
		return id, true
	}

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
		return nil, false
	}

	if len(id.Memberships) == 0 && resolver != nil {
		memberships, err := resolver.Memberships(c.Request.Context(), id.SubjectID, correlationID)
		if err != nil {
			writeBackendError(c, d.Name, correlationID, err)
			return nil, false
		}
		id.Memberships = memberships
	}

	if !id.HasAnyRole(roles) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "この操作を行う権限がありません"})
		return nil, false
	}
	return id, true
}

// forward はリクエストをバックエンドへ転送する。
// POST/PATCHのボディは再エンコードせずにそのまま転送する。
func forward(c *gin.Context, client *httpclient.Client, method, path string, opts *httpclient.Options) (*httpclient.Response, error) {
	ctx := c.Request.Context()

	switch method {
	case http.MethodGet:
		return client.Get(ctx, path, opts)
	case http.MethodDelete:
		return client.Delete(ctx, path, opts)
	case http.MethodPost, http.MethodPatch:
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディの読み取りに失敗: %w", err)
		}
		contentType := c.GetHeader("Content-Type")
		if contentType == "" && len(body) > 0 {
			contentType = "application/json"
		}
		if method == http.MethodPost {
			return client.PostRaw(ctx, path, body, contentType, opts)
		}
		return client.PatchRaw(ctx, path, body, contentType, opts)
	default:
		return nil, fmt.Errorf("サポートされないHTTPメソッドです: %s", method)
	}
}

// queryMap はリクエストのクエリパラメータをマップに変換する。
func queryMap(c *gin.Context) map[string]string {
	values := c.Request.URL.Query()
	if len(values) == 0 {
		return nil
	}
	query := make(map[string]string, len(values))
	for k := range values {
		query[k] = values.Get(k)
	}
	return query
}

// identityHeaders はバックエンドに転送するアイデンティティヘッダーを組み立てる。
// 役割ヘッダーは転送しない。役割は関係データからバックエンドが再導出する。
func identityHeaders(id *identity.Identity) map[string]string {
	if id == nil {
		return nil
	}
	headers := map[string]string{HeaderUserID: id.SubjectID}
	if orgID := id.PrimaryOrganizationID(); orgID != "" {
		headers[HeaderOrganizationID] = orgID
	}
	return headers
}

// writeBackendError はバックエンド呼び出しの失敗をHTTPレスポンスに変換する。
//
// 4xxはバックエンドのエラー意味論を保つためステータスとボディをそのまま返す。
// タイムアウトは504、その他（5xx・到達不能）は詳細を隠した502を返す。
func writeBackendError(c *gin.Context, resourceName, correlationID string, err error) {
	if ce, ok := httpclient.AsClientError(err); ok {
		c.Data(ce.StatusCode, ce.ResponseContentType(), []byte(ce.RawBody))
		c.Abort()
		return
	}
	log.Printf("[Resource] バックエンド呼び出しに失敗: resource=%s, correlation_id=%s, error=%v", resourceName, correlationID, err)
	if errors.Is(err, httpclient.ErrTimeout) {
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
			"error": "バックエンドの応答がタイムアウトしました",
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
		"error": "バックエンドとの通信に失敗しました",
	})
}
