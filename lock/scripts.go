package lock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/redislock/internal/pkg/logger"
)

// The four atomic scripts. UNLOCK and EXTEND check ownership with
// GET == token before touching the lock key, so a client can never delete
// or extend a key it does not own. RESET and the signal-batch script act
// regardless of ownership, and a forced UNLOCK pushes its signal
// regardless of ownership.

const unlockScriptBody = `
local owned = redis.call("GET", KEYS[1]) == ARGV[1]
if owned then
	redis.call("DEL", KEYS[1])
end
if owned or tonumber(ARGV[3]) == 1 then
	redis.call("LPUSH", KEYS[2], 1)
	redis.call("EXPIRE", KEYS[2], ARGV[2])
end
if owned then
	return 1
else
	return 0
end
`

const extendScriptBody = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl == -1 then
		return -1
	end
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
else
	return 0
end
`

const resetScriptBody = `
redis.call("DEL", KEYS[1])
redis.call("LPUSH", KEYS[2], 1)
redis.call("EXPIRE", KEYS[2], ARGV[1])
return 1
`

// signalBatchScriptBody pushes a single wakeup element into every listed
// signal key that doesn't already have one queued, used by ResetAll to
// process a SCAN chunk atomically without touching keys outside the batch.
const signalBatchScriptBody = `
local n = 0
for i = 1, #KEYS do
	if redis.call("LLEN", KEYS[i]) == 0 then
		redis.call("LPUSH", KEYS[i], 1)
		redis.call("EXPIRE", KEYS[i], ARGV[1])
		n = n + 1
	end
end
return n
`

// scriptRunner executes a named Lua script by SHA, reloading the body and
// retrying exactly once on a cache miss (a "NOSCRIPT" reply from the
// server, which happens the first time a script runs against a fresh
// connection, or after a Redis-side SCRIPT FLUSH).
type scriptRunner struct {
	conn Conn

	mu     sync.Mutex
	loaded map[string]bool
}

func newScriptRunner(conn Conn) *scriptRunner {
	return &scriptRunner{conn: conn, loaded: make(map[string]bool)}
}

func scriptSHA(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// run evaluates a script by name via EVALSHA, loading it into the server's
// script cache when EVALSHA reports a miss and logging a "<NAME>_SCRIPT
// not cached" diagnostic each time that reload happens.
func (r *scriptRunner) run(ctx context.Context, name, body string, keys []string, args ...interface{}) (interface{}, error) {
	sha := scriptSHA(body)

	res, err := r.conn.EvalSha(ctx, sha, keys, args...).Result()
	if err == nil || !isNoScript(err) {
		if err == nil {
			r.mu.Lock()
			r.loaded[sha] = true
			r.mu.Unlock()
		}
		return res, err
	}
	// Not in the server's cache (fresh server, or evicted by e.g. SCRIPT
	// FLUSH); fall through to reload below.
	r.mu.Lock()
	delete(r.loaded, sha)
	r.mu.Unlock()

	logger.Debug(strings.ToUpper(name)+"_SCRIPT not cached", "sha", sha)
	loadedSHA, err := r.conn.ScriptLoad(ctx, body).Result()
	if err != nil {
		return nil, err
	}

	res, err = r.conn.EvalSha(ctx, loadedSHA, keys, args...).Result()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.loaded[loadedSHA] = true
	r.mu.Unlock()

	return res, nil
}

// unlock runs UNLOCK: deletes key and pushes a wakeup signal iff token
// still owns key. Returns false on ownership mismatch (key missing or held
// by someone else). When force is true, the signal is pushed regardless of
// ownership, so waiters are still woken on a forced release against a key
// this token no longer (or never did) own; the returned bool still
// reflects whether ownership actually matched.
func (r *scriptRunner) unlock(ctx context.Context, key, signalKey, token string, signalExpireSeconds int64, force bool) (bool, error) {
	forceArg := int64(0)
	if force {
		forceArg = 1
	}
	n, err := asInt64(r.run(ctx, "unlock", unlockScriptBody, []string{key, signalKey}, token, signalExpireSeconds, forceArg))
	return n == 1, err
}

// extend runs EXTEND. Returns 1 on success, 0 on ownership mismatch, -1 if
// the key currently has no TTL.
func (r *scriptRunner) extend(ctx context.Context, key, token string, newTTLMillis int64) (int64, error) {
	return asInt64(r.run(ctx, "extend", extendScriptBody, []string{key}, token, newTTLMillis))
}

// reset runs RESET: unconditionally deletes key and pushes a wakeup
// signal, regardless of current ownership.
func (r *scriptRunner) reset(ctx context.Context, key, signalKey string, signalExpireSeconds int64) error {
	_, err := asInt64(r.run(ctx, "reset", resetScriptBody, []string{key, signalKey}, signalExpireSeconds))
	return err
}

// signalBatch runs the chunked wakeup-push used by ResetAll against a
// batch of signal keys discovered by a SCAN cursor.
func (r *scriptRunner) signalBatch(ctx context.Context, signalKeys []string, signalExpireSeconds int64) error {
	if len(signalKeys) == 0 {
		return nil
	}
	_, err := asInt64(r.run(ctx, "reset_all_signal", signalBatchScriptBody, signalKeys, signalExpireSeconds))
	return err
}

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}

// asInt64 normalizes the integer reply scripts above return (go-redis
// decodes Lua integers as int64, but we centralize the assertion so a
// miniredis or real-Redis quirk only needs fixing in one place).
func asInt64(v interface{}, err error) (int64, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, errors.New("redislock: unexpected script reply type")
	}
	return n, nil
}
