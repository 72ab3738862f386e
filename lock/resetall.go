package lock

import (
	"context"

	"github.com/ignite/redislock/internal/pkg/logger"
)

// resetAllScanCount is the SCAN COUNT hint used while walking the
// keyspace. Keeping batches small is what keeps ResetAll from blocking
// the server the way a single "KEYS lock:*" would.
const resetAllScanCount = 100

// ResetAll administratively clears every lock and signal key this package
// knows about: it deletes all "lock:*" keys and pushes a wakeup signal
// into every "lock-signal:*" list that doesn't already have one queued.
// It never holds the server with a single blocking command — both
// patterns are walked with a cursor-based SCAN in chunks of
// resetAllScanCount. Intended for tests and administrative tooling, never
// normal operation.
func ResetAll(ctx context.Context, conn Conn) error {
	scripts := newScriptRunner(conn)

	deleted, err := scanAndDelete(ctx, conn, lockPrefix+"*")
	if err != nil {
		return err
	}

	signaled, err := scanAndSignal(ctx, conn, scripts, signalPrefix+"*")
	if err != nil {
		return err
	}

	logger.Info("reset all locks", "locks_deleted", deleted, "signals_pushed", signaled)
	return nil
}

func scanAndDelete(ctx context.Context, conn Conn, pattern string) (int, error) {
	var cursor uint64
	var total int
	for {
		keys, next, err := conn.Scan(ctx, cursor, pattern, resetAllScanCount).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			if err := conn.Del(ctx, keys...).Err(); err != nil {
				return total, err
			}
			total += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func scanAndSignal(ctx context.Context, conn Conn, scripts *scriptRunner, pattern string) (int, error) {
	var cursor uint64
	var total int
	for {
		keys, next, err := conn.Scan(ctx, cursor, pattern, resetAllScanCount).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			if err := scripts.signalBatch(ctx, keys, 1); err != nil {
				return total, err
			}
			total += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
