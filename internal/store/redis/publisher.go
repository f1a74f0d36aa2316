// Package redis fans realized trades out to downstream consumers and
// mirrors the session token. Everything here is fire-and-forget: the
// sqlite tables are the source of truth and the service runs without
// redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradeledgerv1/internal/model"
)

const (
	realizedChannel = "pub:journal:realized"
	accessTokenKey  = "journal:access_token"
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher publishes realized trades and mirrors the access token.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishRealized publishes one realized trade as JSON. Failures are
// logged and swallowed — the journal row is already durable.
func (p *Publisher) PublishRealized(ctx context.Context, trade model.RealizedTrade) {
	data, err := json.Marshal(trade)
	if err != nil {
		log.Printf("[redis] WARNING: marshal realized trade: %v", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Publish(pubCtx, realizedChannel, data).Err(); err != nil {
		log.Printf("[redis] WARNING: publish realized trade: %v", err)
	}
}

// MirrorAccessToken caches the session token for other tools. The
// config table remains authoritative.
func (p *Publisher) MirrorAccessToken(ctx context.Context, token string) {
	setCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Set(setCtx, accessTokenKey, token, 0).Err(); err != nil {
		log.Printf("[redis] WARNING: mirror access token: %v", err)
	}
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
