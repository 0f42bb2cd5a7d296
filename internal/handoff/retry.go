package handoff

import (
	"errors"
	"time"
)

// RetryPolicy は配送失敗時の再試行方針。
type RetryPolicy struct {
	// Attempts は1回目を含む最大試行回数。1以下なら再試行しない。
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy はAPIサーバーで使う再試行方針。
// 初回2秒、2倍ずつ増加、最大30秒で、3回まで試みる。
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// noRetry は再試行しない方針。NewDispatcherの既定値。
var noRetry = RetryPolicy{Attempts: 1}

// Backoff は連続失敗回数に基づいて次の試行までの待ち時間を計算する。
func (p RetryPolicy) Backoff(consecutiveFailures int) time.Duration {
	delay := p.InitialBackoff
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return delay
}

// permanentError は再試行しても成功しない配送エラー。
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent はerrを再試行不要のエラーとして包む。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent はerrが再試行不要のエラーかを返す。
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
