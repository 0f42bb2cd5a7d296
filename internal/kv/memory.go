package kv

import (
	"context"
	"sync"
)

// memoryData は同じデータを共有するMemory間で共有される状態。
type memoryData struct {
	mu       sync.Mutex
	values   map[string][]byte
	nextPeer int
	subs     map[int]*subscribers // ピアID -> 購読者
}

// Memory はメモリ上のStore実装。テストや単一プロセスでの動作確認に使う。
// Peer で作った別のMemoryとデータを共有し、別コンテキストからの書き込みとして変更通知を受け取れる。
type Memory struct {
	data *memoryData
	id   int

	failMu   sync.Mutex
	failNext error
}

var _ Store = (*Memory)(nil)

// NewMemory は空のMemoryを生成する。
func NewMemory() *Memory {
	d := &memoryData{
		values: make(map[string][]byte),
		subs:   make(map[int]*subscribers),
	}
	return d.newPeer()
}

func (d *memoryData) newPeer() *Memory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextPeer++
	d.subs[d.nextPeer] = newSubscribers()
	return &Memory{data: d, id: d.nextPeer}
}

// Peer はデータを共有する別のMemoryを返す。
func (m *Memory) Peer() *Memory {
	return m.data.newPeer()
}

// FailNextSet は次の1回のSetを err で失敗させる。
func (m *Memory) FailNextSet(err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	m.failNext = err
}

// Get はキーの値のコピーを返す。
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	v, ok := m.data.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set はキーの値を置き換え、他のピアの購読者に同期的に通知する。
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.failMu.Lock()
	failErr := m.failNext
	m.failNext = nil
	m.failMu.Unlock()
	if failErr != nil {
		return failErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.data.mu.Lock()
	m.data.values[key] = stored
	var others []*subscribers
	for id, s := range m.data.subs {
		if id != m.id {
			others = append(others, s)
		}
	}
	m.data.mu.Unlock()

	for _, s := range others {
		s.dispatch(key)
	}
	return nil
}

// Subscribe は他のピアからのkeyの書き換えを購読する。
func (m *Memory) Subscribe(_ context.Context, key string, fn func()) (func(), error) {
	m.data.mu.Lock()
	s := m.data.subs[m.id]
	m.data.mu.Unlock()
	return s.add(key, fn), nil
}
