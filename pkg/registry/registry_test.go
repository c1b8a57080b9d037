package registry

import (
	"errors"
	"testing"

	"github.com/nao1215/hirehub/pkg/httpclient"
)

// TestRegistry はサービスレジストリの登録と解決を検証する。
func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("登録したバックエンドのクライアントを取得できること", func(t *testing.T) {
		t.Parallel()

		reg := New()
		client := httpclient.New("http://ats:8081")
		if err := reg.Register(BackendATS, client); err != nil {
			t.Fatalf("Register()でエラーが発生: %v", err)
		}

		got, err := reg.Get(BackendATS)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got != client {
			t.Error("登録したクライアントと異なるインスタンスが返った")
		}
	})

	t.Run("未登録のバックエンドでErrNotRegisteredが返ること", func(t *testing.T) {
		t.Parallel()

		reg := New()
		_, err := reg.Get(BackendBilling)
		if !errors.Is(err, ErrNotRegistered) {
			t.Fatalf("ErrNotRegisteredであるべきだが: %v", err)
		}
	})

	t.Run("未定義のバックエンド名の登録がエラーになること", func(t *testing.T) {
		t.Parallel()

		reg := New()
		if err := reg.Register(Backend("typo-service"), httpclient.New("http://x")); err == nil {
			t.Fatal("未定義のバックエンド名でエラーが返るべき")
		}
	})
}

// TestBackendValid はバックエンド列挙型の妥当性判定を検証する。
func TestBackendValid(t *testing.T) {
	t.Parallel()

	t.Run("定義済みのすべてのバックエンドがValidであること", func(t *testing.T) {
		t.Parallel()

		for _, b := range All() {
			if !b.Valid() {
				t.Errorf("Backend %q がValid() = falseを返した", b)
			}
		}
	})

	t.Run("未定義の名前がValidでないこと", func(t *testing.T) {
		t.Parallel()

		if Backend("unknown").Valid() {
			t.Error(`Backend("unknown").Valid() = true, want false`)
		}
	})
}
