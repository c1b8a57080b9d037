package onboarding

import (
	"context"
	"fmt"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/httpclient"
)

// RecruiterRequest はリクルーターオンボーディングのリクエストボディ。
type RecruiterRequest struct {
	// AgencyName は所属エージェンシー名。
	AgencyName string `json:"agency_name"`
	// Specialty は得意分野。
	Specialty string `json:"specialty"`
	// InvitationCode は招待コード。空の場合はリレーション完了を行わない。
	InvitationCode string `json:"invitation_code"`
}

// RecruiterResult はリクルーターオンボーディングの結果。
type RecruiterResult struct {
	// User は実体化されたユーザーレコード。
	User resource `json:"user"`
	// Recruiter は作成されたリクルータープロフィール。
	Recruiter resource `json:"recruiter"`
	// RelationshipCompleted は招待リレーションの完了に成功したかどうか。
	RelationshipCompleted bool `json:"relationship_completed"`
	// WelcomeNotified はウェルカム通知の送信に成功したかどうか。
	WelcomeNotified bool `json:"welcome_notified"`
}

// Recruiter はリクルーターオンボーディングSagaを実行する。
// ユーザー実体化 → リクルータープロフィール作成 → 完了記録の順に進み、
// 招待リレーションの完了と通知送信は補助ステップとして成否のみ報告する。
func (o *Orchestrator) Recruiter(ctx context.Context, ident *identity.Identity, correlationID string, req *RecruiterRequest) (*RecruiterResult, error) {
	user, err := o.ensureUser(ctx, ident, correlationID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの実体化に失敗しました: %w", err)
	}
	if user.boolField("onboarding_completed") {
		return nil, ErrAlreadyOnboarded
	}
	userID := user.id()

	recruiter, err := o.ensure(ctx, o.networkClient,
		"/v1/recruiters/by-user/"+userID,
		"/v1/recruiters",
		map[string]any{
			"user_id":     userID,
			"agency_name": req.AgencyName,
			"specialty":   req.Specialty,
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("リクルータープロフィールの作成に失敗しました: %w", err)
	}

	result := &RecruiterResult{User: user, Recruiter: recruiter}

	if req.InvitationCode != "" {
		result.RelationshipCompleted = o.sideStep("relationship_complete", correlationID, func() error {
			_, err := o.networkClient.Post(ctx, "/v1/relationships/complete",
				map[string]any{
					"invitation_code": req.InvitationCode,
					"recruiter_id":    recruiter.id(),
				},
				&httpclient.Options{CorrelationID: correlationID})
			return err
		})
	}

	result.WelcomeNotified = o.notifyWelcome(ctx, userID, "recruiter", correlationID)

	if err := o.markCompleted(ctx, userID, correlationID); err != nil {
		return nil, err
	}
	result.User["onboarding_completed"] = true

	o.publishCompleted(ctx, userID, "recruiter", correlationID)
	return result, nil
}
