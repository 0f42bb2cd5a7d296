package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisChannel は変更通知に使うPub/Subチャネル名。
const redisChannel = "autowheel:kv:changed"

// Redis はRedisのGET/SETとPub/Subを使うStore実装。
type Redis struct {
	client *redis.Client
	origin string
	logger *slog.Logger
	subs   *subscribers

	mu     sync.Mutex
	pubsub *redis.PubSub
}

var _ Store = (*Redis)(nil)

// NewRedis はRedisを生成する。
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		origin: uuid.NewString(),
		logger: logger,
		subs:   newSubscribers(),
	}
}

// Get はキーの値を返す。
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キー %q の取得に失敗しました: %w", key, err)
	}
	return value, true, nil
}

// Set はキーの値を置き換え、MULTI/EXECで変更通知をまとめて送る。
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, 0)
	pipe.Publish(ctx, redisChannel, changeMessage(r.origin, key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("キー %q の保存に失敗しました: %w", key, err)
	}
	return nil
}

// Subscribe は他のプロセスからのkeyの書き換えを購読する。
// 初回呼び出し時にPub/Subの購読を開始する。
func (r *Redis) Subscribe(ctx context.Context, key string, fn func()) (func(), error) {
	if err := r.ensurePubSub(ctx); err != nil {
		return nil, err
	}
	return r.subs.add(key, fn), nil
}

func (r *Redis) ensurePubSub(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil
	}

	ps := r.client.Subscribe(context.Background(), redisChannel)
	// 購読が確立してから戻る
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("Redisチャネル %s の購読に失敗しました: %w", redisChannel, err)
	}

	r.pubsub = ps
	go r.listen(ps.Channel())
	return nil
}

func (r *Redis) listen(ch <-chan *redis.Message) {
	for msg := range ch {
		origin, key, err := parseChangeMessage(msg.Payload)
		if err != nil {
			r.logger.Warn("ignoring kv notification", slog.String("error", err.Error()))
			continue
		}
		if origin == r.origin {
			continue
		}
		r.subs.dispatch(key)
	}
}

// Close はPub/Subの購読を終了する。クライアント自体は呼び出し側が閉じる。
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	r.pubsub = nil
	return err
}
