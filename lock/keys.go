package lock

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Key prefixes are fixed constants: reset_all scans exactly these two
// patterns, so nothing else in Redis may use them.
const (
	lockPrefix   = "lock:"
	signalPrefix = "lock-signal:"

	// nameSeparator is the character that joins a prefix to a name. A name
	// containing it could itself look like a prefixed key once joined
	// (e.g. a name of "signal:foo" turns lockPrefix+name into
	// "lock:signal:foo", which reads as a namespaced echo of
	// signalPrefix+"foo"), so names may not contain it.
	nameSeparator = ":"
)

// deriveKeys maps a caller-supplied lock name to its paired Redis keys.
func deriveKeys(name string) (key, signalKey string, err error) {
	if name == "" {
		return "", "", ErrInvalidName
	}
	if strings.Contains(name, nameSeparator) {
		return "", "", ErrInvalidName
	}
	return lockPrefix + name, signalPrefix + name, nil
}

// newToken generates a cryptographically random 16-byte owner token,
// hex-encoded so it is safe to store and compare as a Redis string value.
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
