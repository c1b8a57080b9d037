package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/hirehub/pkg/httpclient"
)

// signTestToken はテスト用のHS256署名済みトークンを生成する。
func signTestToken(t *testing.T, secret, audience, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("テスト用トークンの署名に失敗: %v", err)
	}
	return signed
}

// newTestUserAPI はユーザー参照APIのモックサーバーを生成する。
// 呼び出し回数をカウンターに記録する。
func newTestUserAPI(t *testing.T, calls *atomic.Int64) *httpclient.Client {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"email": "taro@example.com",
			"name":  "山田 太郎",
		})
	}))
	t.Cleanup(ts.Close)

	return httpclient.New(ts.URL)
}

// TestVerify は複数発行者に対するトークン検証を検証する。
func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("Bearer形式でないヘッダーでErrUnauthenticatedになること", func(t *testing.T) {
		t.Parallel()

		verifier := NewVerifier(NewCache(time.Minute))
		for _, header := range []string{"", "Basic abc", "Bearer ", "token-without-prefix"} {
			if _, err := verifier.Verify(context.Background(), header); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("header=%q: ErrUnauthenticatedであるべきだが: %v", header, err)
			}
		}
	})

	t.Run("発行者の検証成功時にアイデンティティが組み立てられること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		userAPI := newTestUserAPI(t, &calls)
		issuer := NewIssuer("talent-app", "secret-a", userAPI)
		verifier := NewVerifier(NewCache(time.Minute), issuer)

		token := signTestToken(t, "secret-a", "talent-app", "user_123")
		got, err := verifier.Verify(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}

		if got.SubjectID != "user_123" {
			t.Errorf("SubjectID = %q, want %q", got.SubjectID, "user_123")
		}
		if got.Email != "taro@example.com" {
			t.Errorf("Email = %q, want %q", got.Email, "taro@example.com")
		}
		if got.DisplayName != "山田 太郎" {
			t.Errorf("DisplayName = %q, want %q", got.DisplayName, "山田 太郎")
		}
		if got.SourceApp != "talent-app" {
			t.Errorf("SourceApp = %q, want %q", got.SourceApp, "talent-app")
		}
	})

	t.Run("TTL内の2回目の検証でユーザー参照APIが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		userAPI := newTestUserAPI(t, &calls)
		issuer := NewIssuer("talent-app", "secret-a", userAPI)

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		cache := NewCacheWithClock(60*time.Second, func() time.Time { return now })
		verifier := NewVerifier(cache, issuer)

		token := signTestToken(t, "secret-a", "talent-app", "user_123")

		first, err := verifier.Verify(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("1回目のVerify()でエラーが発生: %v", err)
		}
		if calls.Load() != 1 {
			t.Fatalf("1回目の検証後のAPI呼び出し回数 = %d, want 1", calls.Load())
		}

		now = now.Add(30 * time.Second)
		second, err := verifier.Verify(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("2回目のVerify()でエラーが発生: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("キャッシュヒット時のAPI呼び出し回数 = %d, want 1", calls.Load())
		}
		if second.Email != first.Email || second.SubjectID != first.SubjectID {
			t.Errorf("キャッシュから再構築したアイデンティティが一致しない: %+v != %+v", second, first)
		}

		// TTL経過後はちょうど1回だけ再取得してキャッシュを更新する
		now = now.Add(31 * time.Second)
		if _, err := verifier.Verify(context.Background(), "Bearer "+token); err != nil {
			t.Fatalf("3回目のVerify()でエラーが発生: %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("TTL経過後のAPI呼び出し回数 = %d, want 2", calls.Load())
		}
	})

	t.Run("最初の発行者が失敗しても2番目の発行者で検証できること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		userAPI := newTestUserAPI(t, &calls)
		issuerA := NewIssuer("talent-app", "secret-a", userAPI)
		issuerB := NewIssuer("partner-app", "secret-b", userAPI)
		verifier := NewVerifier(NewCache(time.Minute), issuerA, issuerB)

		// partner-app向けトークン。issuerAの検証は署名・audience不一致で失敗する
		token := signTestToken(t, "secret-b", "partner-app", "user_456")
		got, err := verifier.Verify(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if got.SourceApp != "partner-app" {
			t.Errorf("SourceApp = %q, want %q", got.SourceApp, "partner-app")
		}
	})

	t.Run("すべての発行者が失敗した場合にErrUnauthenticatedのみが返ること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		userAPI := newTestUserAPI(t, &calls)
		issuerA := NewIssuer("talent-app", "secret-a", userAPI)
		issuerB := NewIssuer("partner-app", "secret-b", userAPI)
		verifier := NewVerifier(NewCache(time.Minute), issuerA, issuerB)

		token := signTestToken(t, "wrong-secret", "talent-app", "user_789")
		_, err := verifier.Verify(context.Background(), "Bearer "+token)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("ErrUnauthenticatedであるべきだが: %v", err)
		}
		// 発行者ごとの失敗理由が呼び出し元に漏れないこと
		if err.Error() != ErrUnauthenticated.Error() {
			t.Errorf("エラーメッセージに検証失敗の詳細が含まれている: %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("ローカル検証失敗時にAPIが呼ばれた: %d回", calls.Load())
		}
	})

	t.Run("ユーザー参照APIが失敗した場合に次の発行者へ進むこと", func(t *testing.T) {
		t.Parallel()

		// issuerAのユーザー参照APIは常に500を返す
		brokenAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(brokenAPI.Close)

		var calls atomic.Int64
		healthyAPI := newTestUserAPI(t, &calls)

		// 両発行者が同じ秘密鍵かつ同じaudienceを持つ構成で、
		// ローカル検証は両方成功するがissuerAのAPIだけ落ちている状況を再現する
		issuerA := NewIssuer("talent-app", "secret-a", httpclient.New(brokenAPI.URL))
		issuerB := NewIssuer("talent-app", "secret-a", healthyAPI)
		verifier := NewVerifier(NewCache(time.Minute), issuerA, issuerB)

		token := signTestToken(t, "secret-a", "talent-app", "user_999")
		got, err := verifier.Verify(context.Background(), "Bearer "+token)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if got.SubjectID != "user_999" {
			t.Errorf("SubjectID = %q, want %q", got.SubjectID, "user_999")
		}
	})
}

// TestIdentityHasAnyRole は役割判定ヘルパーを検証する。
func TestIdentityHasAnyRole(t *testing.T) {
	t.Parallel()

	t.Run("いずれかのメンバーシップの役割が集合に含まれる場合にtrueを返すこと", func(t *testing.T) {
		t.Parallel()

		id := &Identity{
			Memberships: []Membership{
				{ID: "m1", OrganizationID: "org-1", Role: RoleMember},
				{ID: "m2", OrganizationID: "org-2", Role: RoleOwner},
			},
		}
		if !id.HasAnyRole([]Role{RoleOwner, RoleAdmin}) {
			t.Error("HasAnyRole = false, want true")
		}
		if id.HasAnyRole([]Role{RoleRecruiter}) {
			t.Error("HasAnyRole = true, want false")
		}
	})

	t.Run("メンバーシップが無い場合にfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		id := &Identity{}
		if id.HasAnyRole([]Role{RoleAdmin}) {
			t.Error("HasAnyRole = true, want false")
		}
		if got := id.PrimaryOrganizationID(); got != "" {
			t.Errorf("PrimaryOrganizationID = %q, want 空", got)
		}
	})
}
