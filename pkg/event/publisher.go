package event

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotConnected はConnect前またはClose後にPublishが呼ばれたことを表す。
var ErrNotConnected = errors.New("イベントブローカーに接続されていません")

// defaultStream は発行先のストリーム名。
const defaultStream = "hirehub:events"

// Publisher はドメインイベントをRedis Streamsへ発行する。
// Connectが成功するまでPublishは受け付けない。
type Publisher struct {
	// client はRedisクライアント。
	client *redis.Client
	// stream は発行先のストリーム名。
	stream string
	// mu はconnectedフラグを保護する。
	mu sync.Mutex
	// connected は接続確立済みかどうか。
	connected bool
}

// NewPublisher は新しいイベント発行者を生成する。
// redisURLには接続先のURL（例: "redis://localhost:6379/0"）を指定する。
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("RedisのURL解析に失敗: %w", err)
	}
	return &Publisher{
		client: redis.NewClient(opts),
		stream: defaultStream,
	}, nil
}

// NewPublisherWithClient は既存のRedisクライアントから発行者を生成する。
// テストや、レートリミットと接続を共有する場合に使用する。
func NewPublisherWithClient(client *redis.Client) *Publisher {
	return &Publisher{
		client: client,
		stream: defaultStream,
	}
}

// Connect はブローカーへの接続を確立する。
// 最初のPublishより前に成功している必要がある。
func (p *Publisher) Connect(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("イベントブローカーへの接続に失敗: %w", err)
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	log.Printf("[Event] イベントブローカーに接続しました: stream=%s", p.stream)
	return nil
}

// IsConnected は発行可能な状態かどうかを返す。
// 発行不能な間は作業を受け付けるべきでない呼び出し元（問い合わせフォーム等）が使用する。
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish はペイロードをドメインイベントの封筒に包んで発行する。
// ブローカーはコンシューマーへ配信するまでイベントを永続化する（at-least-once）。
func (p *Publisher) Publish(ctx context.Context, eventType Type, payload map[string]any) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	ev := New(eventType, payload)
	raw, err := ev.Marshal()
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"id":          ev.ID,
			"type":        string(ev.Type),
			"occurred_at": ev.OccurredAt.Format(time.RFC3339Nano),
			"source":      ev.Source,
			"event":       string(raw),
		},
	}).Err(); err != nil {
		return fmt.Errorf("イベントの発行に失敗: type=%s: %w", eventType, err)
	}

	log.Printf("[Event] イベントを発行しました: type=%s, id=%s", eventType, ev.ID)
	return nil
}

// Close はブローカーとの接続を閉じる。
// プロセス終了時のベストエフォート処理であり、複数回呼んでも安全である。
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return nil
	}
	p.connected = false
	p.mu.Unlock()

	if err := p.client.Close(); err != nil {
		log.Printf("[Event] ブローカー接続のクローズに失敗: %v", err)
		return err
	}
	return nil
}
