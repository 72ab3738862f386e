package lock

import "github.com/redis/go-redis/v9"

// Conn is the contract this package needs from a Redis connection: SET NX,
// GET, EXISTS, PTTL, BLPOP, DEL, SCAN, and the scripting commands used to
// load and invoke the atomic UNLOCK/EXTEND/RESET scripts. redis.Cmdable
// already expresses exactly this surface and is satisfied by *redis.Client,
// *redis.ClusterClient, *redis.Ring, and anything else the go-redis package
// exposes, so the lock package is never narrower or wider than it needs to
// be about what it is handed.
type Conn = redis.Cmdable
