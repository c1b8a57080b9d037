package onboarding

import (
	"context"
	"fmt"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/httpclient"
)

// CandidateRequest は候補者オンボーディングのリクエストボディ。
type CandidateRequest struct {
	// Headline は候補者プロフィールの見出し。
	Headline string `json:"headline"`
	// Location は候補者の所在地。
	Location string `json:"location"`
	// ReferralCode は紹介コード。空の場合は紹介の紐付けを行わない。
	ReferralCode string `json:"referral_code"`
}

// CandidateResult は候補者オンボーディングの結果。
type CandidateResult struct {
	// User は実体化されたユーザーレコード。
	User resource `json:"user"`
	// Candidate は作成された候補者プロフィール。
	Candidate resource `json:"candidate"`
	// ReferralLinked は紹介コードの紐付けに成功したかどうか。
	ReferralLinked bool `json:"referral_linked"`
	// WelcomeNotified はウェルカム通知の送信に成功したかどうか。
	WelcomeNotified bool `json:"welcome_notified"`
}

// Candidate は候補者オンボーディングSagaを実行する。
// ユーザー実体化 → 候補者プロフィール作成 → 完了記録の順に進み、
// 紹介の紐付けと通知送信は補助ステップとして成否のみ報告する。
func (o *Orchestrator) Candidate(ctx context.Context, ident *identity.Identity, correlationID string, req *CandidateRequest) (*CandidateResult, error) {
	user, err := o.ensureUser(ctx, ident, correlationID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの実体化に失敗しました: %w", err)
	}
	if user.boolField("onboarding_completed") {
		return nil, ErrAlreadyOnboarded
	}
	userID := user.id()

	candidate, err := o.ensure(ctx, o.atsClient,
		"/v1/candidates/by-user/"+userID,
		"/v1/candidates",
		map[string]any{
			"user_id":  userID,
			"headline": req.Headline,
			"location": req.Location,
		},
		correlationID)
	if err != nil {
		return nil, fmt.Errorf("候補者プロフィールの作成に失敗しました: %w", err)
	}

	result := &CandidateResult{User: user, Candidate: candidate}

	if req.ReferralCode != "" {
		result.ReferralLinked = o.sideStep("referral_link", correlationID, func() error {
			_, err := o.networkClient.Post(ctx, "/v1/referrals/claim",
				map[string]any{
					"referral_code": req.ReferralCode,
					"user_id":       userID,
				},
				&httpclient.Options{CorrelationID: correlationID})
			return err
		})
	}

	result.WelcomeNotified = o.notifyWelcome(ctx, userID, "candidate", correlationID)

	if err := o.markCompleted(ctx, userID, correlationID); err != nil {
		return nil, err
	}
	result.User["onboarding_completed"] = true

	o.publishCompleted(ctx, userID, "candidate", correlationID)
	return result, nil
}
