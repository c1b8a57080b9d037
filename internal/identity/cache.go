package identity

import (
	"sync"
	"time"
)

// DefaultCacheTTL は検証済みアイデンティティのキャッシュ保持期間。
// 失効・変更されたアイデンティティが最大この期間キャッシュから返される
// ことは許容されたトレードオフである。
const DefaultCacheTTL = 60 * time.Second

// cacheEntry はキャッシュされたアイデンティティの軽量な射影。
// メンバーシップは保持しない。
type cacheEntry struct {
	// identity はキャッシュ対象のフィールドのみを持つアイデンティティ。
	identity Identity
	// expiresAt はエントリの有効期限。
	expiresAt time.Time
}

// Cache は検証済みアイデンティティのTTL付きキャッシュ。
// サブジェクトIDをキーとし、ゲートウェイプロセスごとに独立して保持する。
// 期限切れのエントリは次回参照時に破棄する（バックグラウンド掃除は行わない）。
type Cache struct {
	// mu はentriesを保護する。
	mu sync.Mutex
	// entries はサブジェクトIDからエントリへの対応表。
	entries map[string]cacheEntry
	// ttl はエントリの保持期間。
	ttl time.Duration
	// now は現在時刻を返す関数。テストで偽のクロックを注入できる。
	now func() time.Time
}

// NewCache は指定されたTTLのアイデンティティキャッシュを生成する。
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock はクロックを注入してキャッシュを生成する。
// テストでTTLの経過を時刻操作で再現するために使用する。
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get はサブジェクトIDに対応するキャッシュ済みアイデンティティを返す。
// 期限切れのエントリはこの時点で削除し、キャッシュミスとして扱う。
// 返されるアイデンティティはキャッシュされたフィールドのみで構成され、
// メンバーシップを含まない。
func (c *Cache) Get(subjectID string) (*Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[subjectID]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, subjectID)
		return nil, false
	}

	identity := entry.identity
	return &identity, true
}

// Set はアイデンティティの軽量な射影をキャッシュに保存する。
// メンバーシップは保存しない。
func (c *Cache) Set(identity *Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[identity.SubjectID] = cacheEntry{
		identity: Identity{
			SubjectID:   identity.SubjectID,
			Email:       identity.Email,
			DisplayName: identity.DisplayName,
			SourceApp:   identity.SourceApp,
		},
		expiresAt: c.now().Add(c.ttl),
	}
}
