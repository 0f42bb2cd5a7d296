// Package kv はキー単位で値をまるごと読み書きするストレージのポートと、その実装を提供する。
//
// 変更通知はストレージ自身のネイティブな仕組み（PostgreSQLのLISTEN/NOTIFY、Redis Pub/Sub）で配送し、
// 書き込んだStore自身の購読者には届けない。同じプロセス内の通知は notify.Bus が担う。
package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store はキー・バリューストアのポート。
type Store interface {
	// Get はキーの値を返す。キーが存在しない場合は found=false を返す。
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set はキーの値をまるごと置き換える。
	Set(ctx context.Context, key string, value []byte) error

	// Subscribe は他のStoreからkeyが書き換えられたときに呼ばれるコールバックを登録し、登録解除関数を返す。
	// 通知は変更があったことだけを伝え、値は運ばない。
	Subscribe(ctx context.Context, key string, fn func()) (unsubscribe func(), err error)
}

// subscribers はキーごとのコールバックを管理する。
type subscribers struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]map[int]func()
}

func newSubscribers() *subscribers {
	return &subscribers{byKey: make(map[string]map[int]func())}
}

func (s *subscribers) add(key string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.byKey[key] == nil {
		s.byKey[key] = make(map[int]func())
	}
	s.byKey[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byKey[key], id)
		if len(s.byKey[key]) == 0 {
			delete(s.byKey, key)
		}
	}
}

// dispatch はkeyの購読者をロック外で呼び出す。
func (s *subscribers) dispatch(key string) {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.byKey[key]))
	for _, fn := range s.byKey[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// changeMessage は変更通知のペイロード "<origin>|<key>" を組み立てる。
func changeMessage(origin, key string) string {
	return origin + "|" + key
}

// parseChangeMessage は変更通知のペイロードを分解する。
func parseChangeMessage(payload string) (origin, key string, err error) {
	origin, key, ok := strings.Cut(payload, "|")
	if !ok || origin == "" || key == "" {
		return "", "", fmt.Errorf("malformed change notification: %q", payload)
	}
	return origin, key, nil
}
