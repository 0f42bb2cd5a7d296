package kv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// postgresChannel は変更通知に使うLISTEN/NOTIFYチャネル名。
const postgresChannel = "kv_changed"

// Postgres はkv_slotsテーブルを使うStore実装。
// 変更通知はpg_notifyで送り、pq.Listenerで受け取る。
type Postgres struct {
	db          *sql.DB
	databaseURL string
	origin      string
	logger      *slog.Logger
	subs        *subscribers

	mu       sync.Mutex
	listener *pq.Listener
	done     chan struct{}
}

var _ Store = (*Postgres)(nil)

// NewPostgres はPostgresを生成する。
// databaseURLはLISTEN用の専用接続を張るために使う。
func NewPostgres(db *sql.DB, databaseURL string, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:          db,
		databaseURL: databaseURL,
		origin:      uuid.NewString(),
		logger:      logger,
		subs:        newSubscribers(),
	}
}

// Get はキーの値を返す。
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv_slots WHERE key = $1`,
		key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キー %q の取得に失敗しました: %w", key, err)
	}
	return value, true, nil
}

// Set はキーの値をUPSERTし、同じ文の中で変更通知を送る。
// NOTIFYはトランザクションのコミット時に配送されるため、値が見える前に通知が届くことはない。
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`WITH upserted AS (
			INSERT INTO kv_slots (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			RETURNING key
		)
		SELECT pg_notify($3, $4) FROM upserted`,
		key, value, postgresChannel, changeMessage(p.origin, key),
	)
	if err != nil {
		return fmt.Errorf("キー %q の保存に失敗しました: %w", key, err)
	}
	return nil
}

// Subscribe は他のプロセスからのkeyの書き換えを購読する。
// 初回呼び出し時にLISTEN用の接続を開く。
func (p *Postgres) Subscribe(_ context.Context, key string, fn func()) (func(), error) {
	if err := p.ensureListener(); err != nil {
		return nil, err
	}
	return p.subs.add(key, fn), nil
}

func (p *Postgres) ensureListener() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil {
		return nil
	}

	listener := pq.NewListener(p.databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				p.logger.Warn("kv listener event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		},
	)
	if err := listener.Listen(postgresChannel); err != nil {
		listener.Close()
		return fmt.Errorf("LISTEN %s に失敗しました: %w", postgresChannel, err)
	}

	p.listener = listener
	p.done = make(chan struct{})
	go p.listen(listener, p.done)
	return nil
}

func (p *Postgres) listen(listener *pq.Listener, done chan struct{}) {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			// 再接続直後はnilが届く。取りこぼした可能性があるので全キーの購読者に通知する。
			if n == nil {
				p.dispatchAll()
				continue
			}
			p.handlePayload(n.Extra)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				p.logger.Warn("kv listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Postgres) handlePayload(payload string) {
	origin, key, err := parseChangeMessage(payload)
	if err != nil {
		p.logger.Warn("ignoring kv notification", slog.String("error", err.Error()))
		return
	}
	if origin == p.origin {
		return
	}
	p.subs.dispatch(key)
}

func (p *Postgres) dispatchAll() {
	p.subs.mu.Lock()
	keys := make([]string, 0, len(p.subs.byKey))
	for k := range p.subs.byKey {
		keys = append(keys, k)
	}
	p.subs.mu.Unlock()

	for _, k := range keys {
		p.subs.dispatch(k)
	}
}

// Close はLISTEN用の接続を閉じる。
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	close(p.done)
	err := p.listener.Close()
	p.listener = nil
	return err
}
