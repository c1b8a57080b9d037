package identity

import (
	"context"
	"errors"
	"log"
	"strings"
)

// ErrUnauthenticated は認証に失敗したことを表す。
// どの発行者でどのように失敗したかは呼び出し元に伝えない（情報漏えいの最小化）。
var ErrUnauthenticated = errors.New("認証が必要です")

// Verifier はBearerトークンを複数の発行者に対して検証する。
// 発行者は設定された順に試行し、最初に成功した発行者の結果を採用する。
type Verifier struct {
	// issuers は試行順に並んだトークン発行者のリスト。
	issuers []*Issuer
	// cache は検証済みアイデンティティのキャッシュ。
	cache *Cache
}

// NewVerifier は新しいアイデンティティ検証器を生成する。
func NewVerifier(cache *Cache, issuers ...*Issuer) *Verifier {
	return &Verifier{
		issuers: issuers,
		cache:   cache,
	}
}

// Verify はAuthorizationヘッダーを検証し、正規化されたアイデンティティを返す。
//
// 各発行者でローカル検証を行い、成功したサブジェクトをキャッシュで確認する。
// キャッシュヒット時はキャッシュされたフィールドのみで再構築したアイデンティティを返し、
// ミス時は発行者のユーザー参照APIを呼び出してキャッシュへ書き込む。
// ある発行者が失敗しても次の発行者へ進み、すべて失敗した場合のみ
// ErrUnauthenticatedを返す。最後のエラーは診断用にログへ残す。
func (v *Verifier) Verify(ctx context.Context, authorizationHeader string) (*Identity, error) {
	return v.VerifyWithCorrelation(ctx, authorizationHeader, "")
}

// VerifyWithCorrelation は相関IDを発行者API呼び出しへ伝播しつつ検証する。
func (v *Verifier) VerifyWithCorrelation(ctx context.Context, authorizationHeader, correlationID string) (*Identity, error) {
	tokenString, found := strings.CutPrefix(authorizationHeader, "Bearer ")
	if !found || tokenString == "" {
		return nil, ErrUnauthenticated
	}

	var lastErr error
	for _, issuer := range v.issuers {
		subjectID, err := issuer.verifyToken(tokenString)
		if err != nil {
			lastErr = err
			continue
		}

		// ローカル検証に成功したサブジェクトはまずキャッシュを確認する
		if cached, ok := v.cache.Get(subjectID); ok {
			return cached, nil
		}

		profile, err := issuer.lookupUser(ctx, subjectID, correlationID)
		if err != nil {
			lastErr = err
			continue
		}

		identity := &Identity{
			SubjectID:   subjectID,
			Email:       profile.Email,
			DisplayName: profile.Name,
			SourceApp:   issuer.Name(),
		}
		v.cache.Set(identity)
		return identity, nil
	}

	if lastErr != nil {
		log.Printf("[Auth] すべての発行者でトークン検証に失敗: %v", lastErr)
	}
	return nil, ErrUnauthenticated
}
