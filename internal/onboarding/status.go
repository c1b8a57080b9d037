package onboarding

import (
	"context"
	"fmt"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/pkg/httpclient"
)

// Status はオンボーディングの進行状況を集約した表現。
// 未作成のプロフィールはnullとして返される。
type Status struct {
	// User はユーザーレコード。
	User resource `json:"user"`
	// Candidate は候補者プロフィール。未作成の場合はnull。
	Candidate resource `json:"candidate"`
	// Recruiter はリクルータープロフィール。未作成の場合はnull。
	Recruiter resource `json:"recruiter"`
	// Completed はオンボーディングが完了済みかどうか。
	Completed bool `json:"completed"`
}

// fetchOptional はリソースを取得し、404の場合はnilを返す。
func (o *Orchestrator) fetchOptional(ctx context.Context, client *httpclient.Client, path, correlationID string) (resource, error) {
	resp, err := client.Get(ctx, path, &httpclient.Options{CorrelationID: correlationID})
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var r resource
	if err := resp.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetStatus はアイデンティティのオンボーディング進行状況を集約して返す。
// ユーザーレコード未作成の場合はそのエラーを返し、候補者・リクルーターの
// プロフィールは存在しない場合nullとして扱う。
func (o *Orchestrator) GetStatus(ctx context.Context, ident *identity.Identity, correlationID string) (*Status, error) {
	opts := &httpclient.Options{CorrelationID: correlationID}

	resp, err := o.identityClient.Get(ctx, "/v1/users/by-subject/"+ident.SubjectID, opts)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	var user resource
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	userID := user.id()

	candidate, err := o.fetchOptional(ctx, o.atsClient, "/v1/candidates/by-user/"+userID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("候補者プロフィールの取得に失敗しました: %w", err)
	}
	recruiter, err := o.fetchOptional(ctx, o.networkClient, "/v1/recruiters/by-user/"+userID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("リクルータープロフィールの取得に失敗しました: %w", err)
	}

	return &Status{
		User:      user,
		Candidate: candidate,
		Recruiter: recruiter,
		Completed: user.boolField("onboarding_completed"),
	}, nil
}
