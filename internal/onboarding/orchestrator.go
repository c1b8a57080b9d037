package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/event"
	"github.com/nao1215/hirehub/pkg/httpclient"
	"github.com/nao1215/hirehub/pkg/registry"
)

// ErrAlreadyOnboarded はオンボーディング完了済みのユーザーが
// 再度フローを開始しようとした場合のエラー。
var ErrAlreadyOnboarded = errors.New("オンボーディングは既に完了しています")

// defaultConflictWait は作成競合（409）検出後に再取得するまでの待機時間。
// 並行リクエストやWebhook経由の作成が先行した場合、相手の書き込みが
// 読める状態になるまで短時間待つ。
const defaultConflictWait = 200 * time.Millisecond

// resource はバックエンドが返すリソースの汎用表現。
// オーケストレータはリソースのIDと一部フラグのみを参照し、
// 残りのフィールドはそのまま呼び出し元へ返す。
type resource map[string]any

// id はリソースのID文字列を返す。存在しない場合は空文字を返す。
func (r resource) id() string {
	s, _ := r["id"].(string)
	return s
}

// boolField はリソースのブールフィールドを返す。
func (r resource) boolField(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Orchestrator はオンボーディングSagaの実行を管理するオーケストレータ。
// 各フローは依存順にバックエンドを呼び出し、全ステップを
// 「取得してから作成する」形で冪等に進行させる。
type Orchestrator struct {
	// identityClient はidentityサービスへのHTTPクライアント。
	identityClient *httpclient.Client
	// atsClient はatsサービスへのHTTPクライアント。
	atsClient *httpclient.Client
	// networkClient はnetworkサービスへのHTTPクライアント。
	networkClient *httpclient.Client
	// billingClient はbillingサービスへのHTTPクライアント。
	billingClient *httpclient.Client
	// notificationClient はnotificationサービスへのHTTPクライアント。
	notificationClient *httpclient.Client
	// publisher はドメインイベントのパブリッシャ。
	publisher *event.Publisher
	// conflictWait は409検出後の再取得までの待機関数。テストで差し替える。
	conflictWait func()
}

// NewOrchestrator は新しいオーケストレータを生成する。
// 依存するバックエンドがレジストリに未登録の場合はエラーを返す。
func NewOrchestrator(reg *registry.Registry, publisher *event.Publisher) (*Orchestrator, error) {
	o := &Orchestrator{
		publisher:    publisher,
		conflictWait: func() { time.Sleep(defaultConflictWait) },
	}

	for _, b := range []struct {
		backend registry.Backend
		target  **httpclient.Client
	}{
		{registry.BackendIdentity, &o.identityClient},
		{registry.BackendATS, &o.atsClient},
		{registry.BackendNetwork, &o.networkClient},
		{registry.BackendBilling, &o.billingClient},
		{registry.BackendNotification, &o.notificationClient},
	} {
		client, err := reg.Get(b.backend)
		if err != nil {
			return nil, fmt.Errorf("オーケストレータの初期化に失敗しました: %w", err)
		}
		*b.target = client
	}
	return o, nil
}

// ensure は「取得してから作成する」冪等ステップを実行する。
// 取得が404なら作成し、作成が409（並行作成との競合）なら
// 短時間待機してから再取得する。
func (o *Orchestrator) ensure(ctx context.Context, client *httpclient.Client, getPath, createPath string, body any, correlationID string) (resource, error) {
	opts := &httpclient.Options{CorrelationID: correlationID}

	resp, err := client.Get(ctx, getPath, opts)
	if err == nil {
		var r resource
		if err := resp.Decode(&r); err != nil {
			return nil, err
		}
		return r, nil
	}
	if !httpclient.IsNotFound(err) {
		return nil, err
	}

	resp, err = client.Post(ctx, createPath, body, opts)
	if err == nil {
		var r resource
		if err := resp.Decode(&r); err != nil {
			return nil, err
		}
		return r, nil
	}
	if !httpclient.IsConflict(err) {
		return nil, err
	}

	// 並行リクエストが先に作成した。書き込みが読める状態になるまで待つ。
	log.Printf("[Onboarding] 作成が競合しました。再取得します: path=%s, correlation_id=%s", createPath, correlationID)
	o.conflictWait()

	resp, err = client.Get(ctx, getPath, opts)
	if err != nil {
		return nil, err
	}
	var r resource
	if err := resp.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureUser はアイデンティティに対応するユーザーレコードを取得または作成する。
func (o *Orchestrator) ensureUser(ctx context.Context, ident *identity.Identity, correlationID string) (resource, error) {
	return o.ensure(ctx, o.identityClient,
		"/v1/users/by-subject/"+ident.SubjectID,
		"/v1/users",
		map[string]any{
			"subject_id": ident.SubjectID,
			"email":      ident.Email,
			"name":       ident.DisplayName,
			"source_app": ident.SourceApp,
		},
		correlationID)
}

// markCompleted はユーザーのオンボーディング完了フラグを立てる。
// このステップがSagaのコミットポイントであり、成功後の再実行は
// ErrAlreadyOnboardedで拒否される。
func (o *Orchestrator) markCompleted(ctx context.Context, userID, correlationID string) error {
	_, err := o.identityClient.Patch(ctx, "/v1/users/"+userID,
		map[string]any{"onboarding_completed": true},
		&httpclient.Options{CorrelationID: correlationID})
	if err != nil {
		return fmt.Errorf("オンボーディング完了の記録に失敗しました: %w", err)
	}
	return nil
}

// sideStep は補助ステップを実行し、成否をブール値で返す。
// 失敗してもSagaは中断せず、警告ログを残して続行する。
func (o *Orchestrator) sideStep(name, correlationID string, fn func() error) bool {
	if err := fn(); err != nil {
		log.Printf("[Onboarding] 補助ステップに失敗しました（続行します）: step=%s, correlation_id=%s, error=%v", name, correlationID, err)
		return false
	}
	return true
}

// notifyWelcome はウェルカム通知を送信する補助ステップ。
func (o *Orchestrator) notifyWelcome(ctx context.Context, userID, kind, correlationID string) bool {
	return o.sideStep("welcome_notification", correlationID, func() error {
		_, err := o.notificationClient.Post(ctx, "/v1/notifications",
			map[string]any{
				"user_id": userID,
				"type":    "welcome_" + kind,
			},
			&httpclient.Options{CorrelationID: correlationID})
		return err
	})
}

// publishCompleted はオンボーディング完了イベントを発行する。
// パブリッシャ未接続や発行失敗はSagaの結果に影響しない。
func (o *Orchestrator) publishCompleted(ctx context.Context, userID, kind, correlationID string) {
	if err := o.publisher.Publish(ctx, event.TypeOnboardingCompleted, map[string]any{
		"user_id":        userID,
		"kind":           kind,
		"correlation_id": correlationID,
	}); err != nil {
		log.Printf("[Onboarding] イベント発行に失敗しました: type=%s, error=%v", event.TypeOnboardingCompleted, err)
	}
}

// Init はアイデンティティに対応するユーザーレコードを実体化して返す。
// 既存レコードがあればそれを返すだけであり、何度呼んでも安全である。
func (o *Orchestrator) Init(ctx context.Context, ident *identity.Identity, correlationID string) (resource, error) {
	user, err := o.ensureUser(ctx, ident, correlationID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの実体化に失敗しました: %w", err)
	}
	return user, nil
}
