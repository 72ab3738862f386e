package lock

import "errors"

// Sentinel errors surfaced by the lock package. Programmer-error conditions
// (double acquire, release without hold, bad timeout arguments) are always
// returned rather than panicking; callers are expected to check with
// errors.Is.
var (
	// ErrAlreadyAcquired is returned by Acquire when this Lock instance
	// already believes it holds the lock. A single instance cannot be
	// acquired twice without an intervening Release or Reset.
	ErrAlreadyAcquired = errors.New("redislock: already acquired")

	// ErrNotAcquired is returned by Release (without force) or Extend when
	// the instance does not currently hold the lock, or when the server
	// reports the key's owner token no longer matches (it expired or was
	// force-reset by another client).
	ErrNotAcquired = errors.New("redislock: lock not acquired")

	// ErrNotExpirable is returned by Extend when the lock key currently has
	// no TTL (it was constructed, or last held, without an expire).
	ErrNotExpirable = errors.New("redislock: lock is not expirable")

	// ErrTimeoutNotUsable is returned by Acquire when a timeout is supplied
	// together with NonBlocking().
	ErrTimeoutNotUsable = errors.New("redislock: timeout is not usable with non-blocking acquire")

	// ErrTimeoutTooLarge is returned by Acquire when the supplied timeout
	// exceeds the lock's configured expire. A waiter woken after its own
	// timeout would otherwise be racing a signal from a later release.
	ErrTimeoutTooLarge = errors.New("redislock: timeout is larger than the lock's expire")

	// ErrInvalidTimeout is returned by Acquire when the supplied timeout is
	// zero or negative.
	ErrInvalidTimeout = errors.New("redislock: timeout must be a positive duration")

	// ErrAutoRenewalRequiresExpire is returned by NewLock when
	// WithAutoRenewal is used without WithExpire.
	ErrAutoRenewalRequiresExpire = errors.New("redislock: auto-renewal requires an expire")

	// ErrInvalidName is returned by NewLock when name is empty or contains
	// the ":" separator used to join it to the lock/signal key prefixes.
	ErrInvalidName = errors.New("redislock: name must be non-empty and must not contain \":\"")
)
