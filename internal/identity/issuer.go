package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/hirehub/pkg/httpclient"
)

// Issuer は1つのクライアントアプリケーション向けのトークン発行者。
// トークンの署名・クレームをローカルで検証し、プロファイル情報は
// 発行者のユーザー参照APIから取得する。
type Issuer struct {
	// name はトークンを発行するクライアントアプリケーション名。
	// JWTのaudienceクレームと一致する必要がある。
	name string
	// secret はHS256署名検証用の秘密鍵。
	secret []byte
	// userAPI は発行者のユーザー参照APIへのクライアント。
	userAPI *httpclient.Client
}

// NewIssuer は新しいトークン発行者クライアントを生成する。
// 2つのクライアントアプリケーションは同一のユーザー参照APIを共有するため、
// userAPIには同じクライアントを渡してよい。
func NewIssuer(name, secret string, userAPI *httpclient.Client) *Issuer {
	return &Issuer{
		name:    name,
		secret:  []byte(secret),
		userAPI: userAPI,
	}
}

// Name は発行元アプリケーション名を返す。
func (i *Issuer) Name() string {
	return i.name
}

// verifyToken はトークンの署名とクレームをローカルで検証し、サブジェクトIDを返す。
// 外部APIは呼び出さない。
func (i *Issuer) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(i.name),
	)
	if err != nil {
		return "", fmt.Errorf("発行者 %s でのトークン検証に失敗: %w", i.name, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("発行者 %s のトークンに有効なサブジェクトがありません", i.name)
	}
	return subject, nil
}

// userProfile はユーザー参照APIのレスポンス。
type userProfile struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Name はユーザーの表示名。
	Name string `json:"name"`
}

// lookupUser は発行者のユーザー参照APIからプロファイル情報を取得する。
func (i *Issuer) lookupUser(ctx context.Context, subjectID, correlationID string) (*userProfile, error) {
	if i.userAPI == nil {
		return nil, errors.New("ユーザー参照APIが設定されていません")
	}

	resp, err := i.userAPI.Get(ctx, "/v1/users/"+subjectID, &httpclient.Options{
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗: subject=%s: %w", subjectID, err)
	}

	var profile userProfile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
