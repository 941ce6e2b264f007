// Command ledgerd-api serves the tenant-facing ingress and balance/admin
// HTTP surface.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loyaltyledger/ledgerd/internal/api"
	"github.com/loyaltyledger/ledgerd/internal/config"
	"github.com/loyaltyledger/ledgerd/internal/ratelimit"
	"github.com/loyaltyledger/ledgerd/internal/store"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	ctx := context.Background()

	pool, err := store.NewPool(ctx, store.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime(),
		MaxConnIdleTime: cfg.DBMaxConnIdle(),
	})
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer pool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	var redisClient redis.UniversalClient
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting and idempotency locking disabled\" err=%v", parseErr)
		} else {
			client := redis.NewClient(opts)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := client.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting and idempotency locking disabled\" err=%v", pingErr)
				client.Close()
			} else {
				redisClient = client
				defer client.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	var limiter *ratelimit.Limiter
	var idemLock *ratelimit.IdempotencyLock
	if redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient, cfg.RedisRateLimitPrefix)
		idemLock = ratelimit.NewIdempotencyLock(redisClient, cfg.RedisIdempotencyLockPrefix, 10*time.Second)
	} else {
		log.Println("level=warn component=bootstrap msg=\"no redis; submission rate limiting and idempotency locking disabled\"")
	}

	handler := api.NewHandler(pool, limiter, idemLock, cfg.SubmissionRateLimitPerMinute)
	keyLookup := func(tenant, apiKey string) bool {
		configured, ok := cfg.TenantAPIKeys[tenant]
		return ok && configured == apiKey
	}
	router := api.NewRouter(handler, cfg.ClerkJWKSURL, cfg.InternalAPIKey, keyLookup)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=http msg=\"shutdown complete\"")
}
