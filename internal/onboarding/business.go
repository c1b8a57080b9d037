package onboarding

import (
	"context"
	"fmt"
	"log"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/event"
	"github.com/nao1215/hirehub/pkg/httpclient"
)

// BusinessRequest は事業者オンボーディングのリクエストボディ。
type BusinessRequest struct {
	// OrganizationName は作成する組織の名前。
	OrganizationName string `json:"organization_name"`
	// CompanyWebsite は会社のWebサイトURL。
	CompanyWebsite string `json:"company_website"`
	// Plan は契約するプラン名。空の場合はサブスクリプションを有効化しない。
	Plan string `json:"plan"`
}

// BusinessResult は事業者オンボーディングの結果。
type BusinessResult struct {
	// User は実体化されたユーザーレコード。
	User resource `json:"user"`
	// Organization は作成された組織。
	Organization resource `json:"organization"`
	// Company は作成された会社レコード。
	Company resource `json:"company"`
	// Membership はユーザーと組織を結ぶオーナーメンバーシップ。
	Membership resource `json:"membership"`
	// BillingProfile は作成された請求プロファイル。
	BillingProfile resource `json:"billing_profile"`
	// SubscriptionActivated はサブスクリプションの有効化に成功したかどうか。
	SubscriptionActivated bool `json:"subscription_activated"`
	// WelcomeNotified はウェルカム通知の送信に成功したかどうか。
	WelcomeNotified bool `json:"welcome_notified"`
}

// Business は事業者オンボーディングSagaを実行する。
// ユーザー実体化 → 組織作成 → 会社作成 → オーナーメンバーシップ作成 →
// 請求プロファイル作成 → 完了記録の順に依存関係を解決しながら進む。
// サブスクリプション有効化と通知送信は補助ステップとして成否のみ報告する。
func (o *Orchestrator) Business(ctx context.Context, ident *identity.Identity, correlationID string, req *BusinessRequest) (*BusinessResult, error) {
	user, err := o.ensureUser(ctx, ident, correlationID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの実体化に失敗しました: %w", err)
	}
	if user.boolField("onboarding_completed") {
		return nil, ErrAlreadyOnboarded
	}
	userID := user.id()

	org, err := o.ensure(ctx, o.identityClient,
		"/v1/organizations/by-owner/"+userID,
		"/v1/organizations",
		map[string]any{
			"name":          req.OrganizationName,
			"owner_user_id": userID,
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("組織の作成に失敗しました: %w", err)
	}
	orgID := org.id()

	company, err := o.ensure(ctx, o.atsClient,
		"/v1/companies/by-organization/"+orgID,
		"/v1/companies",
		map[string]any{
			"organization_id": orgID,
			"name":            req.OrganizationName,
			"website":         req.CompanyWebsite,
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("会社レコードの作成に失敗しました: %w", err)
	}

	membership, err := o.ensure(ctx, o.identityClient,
		"/v1/memberships/by-user/"+userID+"/organization/"+orgID,
		"/v1/memberships",
		map[string]any{
			"user_id":         userID,
			"organization_id": orgID,
			"role":            string(identity.RoleOwner),
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("メンバーシップの作成に失敗しました: %w", err)
	}

	profile, err := o.ensure(ctx, o.billingClient,
		"/v1/billing-profiles/by-organization/"+orgID,
		"/v1/billing-profiles",
		map[string]any{
			"organization_id": orgID,
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("請求プロファイルの作成に失敗しました: %w", err)
	}

	result := &BusinessResult{
		User:           user,
		Organization:   org,
		Company:        company,
		Membership:     membership,
		BillingProfile: profile,
	}

	if req.Plan != "" {
		result.SubscriptionActivated = o.sideStep("subscription_activate", correlationID, func() error {
			_, err := o.billingClient.Post(ctx, "/v1/subscriptions",
				map[string]any{
					"organization_id": orgID,
					"plan":            req.Plan,
				},
				&httpclient.Options{CorrelationID: correlationID})
			return err
		})
	}

	result.WelcomeNotified = o.notifyWelcome(ctx, userID, "business", correlationID)

	if err := o.markCompleted(ctx, userID, correlationID); err != nil {
		return nil, err
	}
	result.User["onboarding_completed"] = true

	if err := o.publisher.Publish(ctx, event.TypeOrganizationProvisioned, map[string]any{
		"organization_id": orgID,
		"owner_user_id":   userID,
		"correlation_id":  correlationID,
	}); err != nil {
		log.Printf("[Onboarding] イベント発行に失敗しました: type=%s, error=%v", event.TypeOrganizationProvisioned, err)
	}
	o.publishCompleted(ctx, userID, "business", correlationID)
	return result, nil
}
