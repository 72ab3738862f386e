// Package lock implements a distributed mutual-exclusion primitive over a
// Redis-compatible store: a client holds a named lock by being the sole
// owner of a key, and contending clients block on a server-side signal
// list instead of polling.
//
// Safety relies on a per-instance owner token: only the Lock holding the
// token that currently matches Redis may release or extend it. Liveness
// relies on an optional key TTL: a holder that crashes without releasing
// is eventually forgotten once its key expires. Wakeup is push-based: a
// release LPUSHes a single element onto the name's signal list, and a
// blocked acquirer's BLPOP wakes on it and retries.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/redislock/internal/pkg/logger"
)

// Lock is a single client's handle on a named distributed lock. It is not
// safe for concurrent use by multiple goroutines; the auto-renewal worker,
// which runs on a separate goroutine internally, is the only exception.
type Lock struct {
	conn    Conn
	scripts *scriptRunner

	name      string
	key       string
	signalKey string
	id        string

	hasExpire bool
	expire    time.Duration

	autoRenewal     bool
	renewalInterval time.Duration

	mu      sync.Mutex
	held    bool
	renewal *renewalWorker
}

// Option configures a Lock at construction time.
type Option func(*lockConfig)

type lockConfig struct {
	expire      time.Duration
	hasExpire   bool
	id          string
	autoRenewal bool
}

// WithExpire sets the lock key's TTL. Without it, the key has no
// expiration and is held until explicit Release or Reset.
func WithExpire(d time.Duration) Option {
	return func(c *lockConfig) {
		c.expire = d
		c.hasExpire = true
	}
}

// WithID supplies a caller-chosen owner token instead of a random one.
func WithID(id []byte) Option {
	return func(c *lockConfig) {
		c.id = string(id)
	}
}

// WithAutoRenewal starts a background worker on successful Acquire that
// periodically extends the key's TTL until Release or Reset. Requires
// WithExpire; NewLock returns ErrAutoRenewalRequiresExpire otherwise.
func WithAutoRenewal() Option {
	return func(c *lockConfig) {
		c.autoRenewal = true
	}
}

// NewLock constructs a Lock for name against conn. Configuration errors
// (an empty name, or WithAutoRenewal without WithExpire) are reported
// immediately rather than deferred to Acquire.
func NewLock(conn Conn, name string, opts ...Option) (*Lock, error) {
	key, signalKey, err := deriveKeys(name)
	if err != nil {
		return nil, err
	}

	var cfg lockConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.autoRenewal && !cfg.hasExpire {
		return nil, ErrAutoRenewalRequiresExpire
	}

	id := cfg.id
	if id == "" {
		id, err = newToken()
		if err != nil {
			return nil, err
		}
	}

	l := &Lock{
		conn:      conn,
		scripts:   newScriptRunner(conn),
		name:      name,
		key:       key,
		signalKey: signalKey,
		id:        id,
		hasExpire: cfg.hasExpire,
		expire:    cfg.expire,
	}

	if cfg.autoRenewal {
		l.autoRenewal = true
		l.renewalInterval = cfg.expire * 2 / 3
	}

	return l, nil
}

// Name returns the lock's name, as supplied to NewLock.
func (l *Lock) Name() string { return l.name }

// ID returns this instance's owner token.
func (l *Lock) ID() []byte { return []byte(l.id) }

// signalExpireSeconds is the TTL applied to the signal list alongside
// every push. When the lock itself has no expire, a short default keeps
// orphaned signal lists from lingering forever.
func (l *Lock) signalExpireSeconds() int64 {
	if l.hasExpire {
		secs := int64(l.expire / time.Second)
		if secs < 1 {
			secs = 1
		}
		return secs
	}
	return 1
}

// acquireConfig holds the parsed AcquireOptions for a single Acquire call.
type acquireConfig struct {
	blocking   bool
	timeout    time.Duration
	timeoutSet bool
}

// AcquireOption configures a single Acquire call.
type AcquireOption func(*acquireConfig)

// NonBlocking makes Acquire return immediately (true/false) instead of
// waiting on the signal list when the lock is contended.
func NonBlocking() AcquireOption {
	return func(c *acquireConfig) { c.blocking = false }
}

// WithTimeout bounds how long a blocking Acquire waits before giving up
// and returning false. Using it together with NonBlocking is a programmer
// error (ErrTimeoutNotUsable); a non-positive duration is also an error
// (ErrInvalidTimeout); a duration larger than the lock's expire is an
// error (ErrTimeoutTooLarge), since a waiter woken after its own timeout
// window would otherwise be racing a signal meant for a later holder.
func WithTimeout(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		c.timeout = d
		c.timeoutSet = true
	}
}

// Acquire attempts to take the lock. By default it blocks until acquired
// with no timeout; pass NonBlocking() for a single immediate attempt, or
// WithTimeout(d) to bound a blocking attempt.
//
// Acquiring a Lock instance that is already held (locally) is a
// programmer error and returns ErrAlreadyAcquired rather than blocking or
// silently succeeding.
func (l *Lock) Acquire(ctx context.Context, opts ...AcquireOption) (bool, error) {
	l.mu.Lock()
	alreadyHeld := l.held
	l.mu.Unlock()
	if alreadyHeld {
		return false, ErrAlreadyAcquired
	}

	cfg := acquireConfig{blocking: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.blocking && cfg.timeoutSet {
		return false, ErrTimeoutNotUsable
	}
	if cfg.timeoutSet {
		if cfg.timeout <= 0 {
			return false, ErrInvalidTimeout
		}
		if l.hasExpire && cfg.timeout > l.expire {
			return false, ErrTimeoutTooLarge
		}
	}

	var deadline time.Time
	hasDeadline := cfg.timeoutSet
	if hasDeadline {
		deadline = time.Now().Add(cfg.timeout)
	}

	logger.Debug("acquiring lock", "name", l.name, "blocking", cfg.blocking)

	for {
		ok, err := l.trySet(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			l.mu.Lock()
			l.held = true
			l.mu.Unlock()
			if l.autoRenewal {
				l.mu.Lock()
				l.renewal = startRenewalWorker(l)
				l.mu.Unlock()
			}
			logger.Debug("acquired lock", "name", l.name)
			return true, nil
		}

		if !cfg.blocking {
			return false, nil
		}

		wait := time.Duration(0)
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			wait = remaining
		}

		if _, err := l.conn.BLPop(ctx, wait, l.signalKey).Result(); err != nil && !isRedisNil(err) {
			return false, err
		}
		// Either woken by a release's signal, or BLPOP's own timeout
		// elapsed with nothing pushed — either way, loop back and retry
		// SET NX. If the deadline has now passed, the remaining-time
		// check above will stop us on the next iteration; this retry is
		// what lets an acquirer succeed when the holder's key happened to
		// expire right around the same time BLPOP gave up waiting.
	}
}

func (l *Lock) trySet(ctx context.Context) (bool, error) {
	var ttl time.Duration
	if l.hasExpire {
		ttl = l.expire
	}
	return l.conn.SetNX(ctx, l.key, l.id, ttl).Result()
}

// Release gives up the lock. Without force, releasing a lock this
// instance does not hold (locally, or because the server reports the
// owner token no longer matches) returns ErrNotAcquired. With force, the
// signal push happens unconditionally — useful to wake waiters even when
// this instance's own hold was already lost.
func (l *Lock) Release(ctx context.Context, force bool) error {
	l.mu.Lock()
	held := l.held
	renewal := l.renewal
	l.renewal = nil
	l.mu.Unlock()

	if !held && !force {
		return ErrNotAcquired
	}

	if renewal != nil {
		renewal.stop()
	}

	ok, err := l.scripts.unlock(ctx, l.key, l.signalKey, l.id, l.signalExpireSeconds(), force)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.held = false
	l.mu.Unlock()

	if !ok && !force {
		return ErrNotAcquired
	}

	logger.Debug("released lock", "name", l.name, "forced", force && !ok)
	return nil
}

// Extend refreshes the lock's TTL to its construction-time expire. It
// requires the lock to be held and requires the key to already have a
// TTL; see ExtendTo to change that TTL explicitly.
func (l *Lock) Extend(ctx context.Context) error {
	return l.extendTo(ctx, l.expire)
}

// ExtendTo refreshes the lock's TTL to expire, overriding the
// construction-time value for this call only.
func (l *Lock) ExtendTo(ctx context.Context, expire time.Duration) error {
	return l.extendTo(ctx, expire)
}

func (l *Lock) extendTo(ctx context.Context, expire time.Duration) error {
	l.mu.Lock()
	held := l.held
	l.mu.Unlock()
	if !held {
		return ErrNotAcquired
	}

	status, err := l.scripts.extend(ctx, l.key, l.id, expire.Milliseconds())
	if err != nil {
		return err
	}

	switch status {
	case 1:
		return nil
	case -1:
		return ErrNotExpirable
	default:
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
		return ErrNotAcquired
	}
}

// Reset administratively breaks this lock: it clears the server-side key
// and signals waiters regardless of current ownership, then clears local
// held state. Intended for operator tooling, not normal release.
func (l *Lock) Reset(ctx context.Context) error {
	l.mu.Lock()
	renewal := l.renewal
	l.renewal = nil
	l.mu.Unlock()

	if renewal != nil {
		renewal.stop()
	}

	if err := l.scripts.reset(ctx, l.key, l.signalKey, l.signalExpireSeconds()); err != nil {
		return err
	}

	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}

// Do acquires the lock, runs fn, and releases the lock on every exit path
// out of fn — a normal return, an error return, or a panic — giving
// callers an "enter scope, acquire; leave scope, release" guard without
// having to write their own defer Release after every Acquire call.
//
// If acquiring fails without error (contention on a non-blocking or timed
// attempt), Do returns ErrNotAcquired without invoking fn.
func (l *Lock) Do(ctx context.Context, fn func(ctx context.Context) error, opts ...AcquireOption) error {
	ok, err := l.Acquire(ctx, opts...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		if err := l.Release(ctx, false); err != nil {
			logger.Warn("Do: release failed", "name", l.name, "error", err)
		}
	}()
	return fn(ctx)
}

// Locked reports whether the server currently has this lock's key set —
// a point-in-time probe of the name, not a claim that this instance is
// the holder.
func (l *Lock) Locked(ctx context.Context) (bool, error) {
	n, err := l.conn.Exists(ctx, l.key).Result()
	return n > 0, err
}

// GetOwnerID returns the current owner token stored server-side, which
// may differ from this instance's own ID if the lock was reset by another
// client. Returns nil if the key does not currently exist.
func (l *Lock) GetOwnerID(ctx context.Context) ([]byte, error) {
	v, err := l.conn.Get(ctx, l.key).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(v), nil
}

func isRedisNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
