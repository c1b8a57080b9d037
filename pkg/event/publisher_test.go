package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestPublisher はminiredisを使用したテスト用の発行者を生成する。
func newTestPublisher(t *testing.T) (*Publisher, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPublisherWithClient(client), mr
}

// TestPublisherConnect はConnectの成否を検証する。
func TestPublisherConnect(t *testing.T) {
	t.Parallel()

	t.Run("接続成功後にIsConnectedがtrueを返すこと", func(t *testing.T) {
		t.Parallel()

		pub, _ := newTestPublisher(t)
		if pub.IsConnected() {
			t.Error("Connect前にIsConnected() = true")
		}
		if err := pub.Connect(context.Background()); err != nil {
			t.Fatalf("Connect()でエラーが発生: %v", err)
		}
		if !pub.IsConnected() {
			t.Error("Connect後にIsConnected() = false")
		}
	})

	t.Run("ブローカーに到達できない場合にConnectが失敗すること", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { client.Close() })

		pub := NewPublisherWithClient(client)
		if err := pub.Connect(context.Background()); err == nil {
			t.Fatal("Connect()がエラーを返すべきだが、nilが返った")
		}
		if pub.IsConnected() {
			t.Error("接続失敗後にIsConnected() = true")
		}
	})
}

// TestPublisherPublish はイベント発行を検証する。
func TestPublisherPublish(t *testing.T) {
	t.Parallel()

	t.Run("Connect前のPublishがErrNotConnectedになること", func(t *testing.T) {
		t.Parallel()

		pub, _ := newTestPublisher(t)
		err := pub.Publish(context.Background(), TypeContactSubmitted, map[string]any{"name": "山田"})
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("ErrNotConnectedであるべきだが: %v", err)
		}
	})

	t.Run("発行したイベントが封筒形式でストリームに保存されること", func(t *testing.T) {
		t.Parallel()

		pub, mr := newTestPublisher(t)
		if err := pub.Connect(context.Background()); err != nil {
			t.Fatalf("Connect()でエラーが発生: %v", err)
		}

		payload := map[string]any{"name": "山田", "message": "問い合わせ本文"}
		if err := pub.Publish(context.Background(), TypeContactSubmitted, payload); err != nil {
			t.Fatalf("Publish()でエラーが発生: %v", err)
		}

		entries, err := mr.Stream(defaultStream)
		if err != nil {
			t.Fatalf("ストリームの取得に失敗: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("ストリームのエントリ数 = %d, want 1", len(entries))
		}

		values := map[string]string{}
		for i := 0; i+1 < len(entries[0].Values); i += 2 {
			values[entries[0].Values[i]] = entries[0].Values[i+1]
		}

		if values["type"] != string(TypeContactSubmitted) {
			t.Errorf("type = %q, want %q", values["type"], TypeContactSubmitted)
		}
		if values["source"] != sourceService {
			t.Errorf("source = %q, want %q", values["source"], sourceService)
		}
		if values["id"] == "" {
			t.Error("idが空文字列")
		}

		var ev Event
		if err := json.Unmarshal([]byte(values["event"]), &ev); err != nil {
			t.Fatalf("封筒のデシリアライズに失敗: %v", err)
		}
		if ev.Type != TypeContactSubmitted {
			t.Errorf("封筒のType = %q, want %q", ev.Type, TypeContactSubmitted)
		}
		if ev.Payload["name"] != "山田" {
			t.Errorf("Payload[name] = %v, want %q", ev.Payload["name"], "山田")
		}
		if ev.OccurredAt.IsZero() || ev.OccurredAt.After(time.Now().UTC()) {
			t.Errorf("OccurredAtが不正: %v", ev.OccurredAt)
		}
	})
}

// TestPublisherClose はCloseの冪等性を検証する。
func TestPublisherClose(t *testing.T) {
	t.Parallel()

	t.Run("Close後のPublishがErrNotConnectedになること", func(t *testing.T) {
		t.Parallel()

		pub, _ := newTestPublisher(t)
		if err := pub.Connect(context.Background()); err != nil {
			t.Fatalf("Connect()でエラーが発生: %v", err)
		}
		if err := pub.Close(); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}

		err := pub.Publish(context.Background(), TypeOnboardingCompleted, nil)
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("ErrNotConnectedであるべきだが: %v", err)
		}
	})

	t.Run("複数回Closeしてもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		pub, _ := newTestPublisher(t)
		if err := pub.Connect(context.Background()); err != nil {
			t.Fatalf("Connect()でエラーが発生: %v", err)
		}
		if err := pub.Close(); err != nil {
			t.Fatalf("1回目のClose()でエラーが発生: %v", err)
		}
		if err := pub.Close(); err != nil {
			t.Fatalf("2回目のClose()でエラーが発生: %v", err)
		}
	})
}
