// Package event はドメインイベントの封筒型と永続的なトピックへの発行を提供する。
//
// イベントはRedis Streamsに永続化され、非同期コンシューマーへ
// at-least-onceで配信される。コンシューマー側は冪等に処理すること。
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeContactSubmitted はステータスページの問い合わせフォームが送信されたことを表す。
	TypeContactSubmitted Type = "ContactSubmitted"
	// TypeOnboardingCompleted はオンボーディングが完了したことを表す。
	TypeOnboardingCompleted Type = "OnboardingCompleted"
	// TypeOrganizationProvisioned は事業者オンボーディングで組織一式が作成されたことを表す。
	TypeOrganizationProvisioned Type = "OrganizationProvisioned"
)

// sourceService はイベントの発行元サービス名。
const sourceService = "hirehub-gateway"

// Event は発行されるドメインイベントの不変な封筒。
// 一度生成された後は変更されず、送信時に所有権がブローカーへ移る。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Type はイベントの種類。
	Type Type `json:"type"`
	// OccurredAt はイベントが発行された日時。
	OccurredAt time.Time `json:"occurred_at"`
	// Source はイベントの発行元サービス名。
	Source string `json:"source"`
	// Payload はイベント固有のデータ。
	Payload map[string]any `json:"payload"`
}

// New は新しいドメインイベントを生成する。
func New(eventType Type, payload map[string]any) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Source:     sourceService,
		Payload:    payload,
	}
}

// Marshal はイベントをJSONにシリアライズする。
func (e *Event) Marshal() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	return raw, nil
}
