package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/redislock/internal/config"
	"github.com/ignite/redislock/internal/pkg/logger"
	"github.com/ignite/redislock/lock"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lock-admin <reset-all|locked|hold> [args]")
	fmt.Fprintln(os.Stderr, "  reset-all                  clear every lock and signal list")
	fmt.Fprintln(os.Stderr, "  locked <name>              report whether <name> is currently held")
	fmt.Fprintln(os.Stderr, "  hold <name> <duration>     acquire <name>, hold for <duration>, then release")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	configPath := envOrDefault("LOCK_ADMIN_CONFIG", "config.yaml")
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot connect to redis at %s: %v\n", cfg.Redis.Addr, err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reset-all":
		runResetAll(client)
	case "locked":
		runLocked(client, os.Args[2:])
	case "hold":
		runHold(client, cfg.Lock, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func runResetAll(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := lock.ResetAll(ctx, client); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: reset-all failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ all locks and signal lists cleared")
}

func runLocked(client *redis.Client, args []string) {
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	l, err := lock.NewLock(client, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	held, err := l.Locked(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if !held {
		fmt.Printf("%s: not locked\n", args[0])
		return
	}

	owner, err := l.GetOwnerID(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: locked, owner=%s\n", args[0], owner)
}

func runHold(client *redis.Client, lockCfg config.LockConfig, args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}

	name := args[0]
	d, err := time.ParseDuration(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid duration %q: %v\n", args[1], err)
		os.Exit(1)
	}

	buffer := lockCfg.Expire()
	if buffer <= 0 {
		buffer = 5 * time.Second
	}

	opts := []lock.Option{lock.WithExpire(d + buffer)}
	if lockCfg.AutoRenewal {
		opts = append(opts, lock.WithAutoRenewal())
	}

	l, err := lock.NewLock(client, name, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	acquireTimeout := lockCfg.AcquireTimeout()
	if acquireTimeout <= 0 {
		acquireTimeout = 30 * time.Second
	}
	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer acquireCancel()

	ok, err := l.Acquire(acquireCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: acquire failed: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: could not acquire %s\n", name)
		os.Exit(1)
	}

	logger.Info("holding lock", "name", name, "duration", d.String())
	fmt.Printf("holding %q for %s (id=%s)\n", name, d, l.ID())
	time.Sleep(d)

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer releaseCancel()
	if err := l.Release(releaseCtx, false); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: release failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ released")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
