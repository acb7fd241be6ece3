package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signagehub/internal/logging"
	"signagehub/internal/model"
)

// NonceKeyPrefix namespaces consumed nonces: nonce:{displayID}:{nonce}
const NonceKeyPrefix = "nonce:"

// RedisNonceLedger records consumed nonces with SET NX so the first writer wins
// atomically and entries expire on their own.
type RedisNonceLedger struct {
	client *redis.Client
	now    func() time.Time
	logger logging.Logger
}

// NewRedisNonceLedger creates a nonce ledger backed by Redis.
func NewRedisNonceLedger(client *redis.Client, now func() time.Time, logger logging.Logger) *RedisNonceLedger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RedisNonceLedger{client: client, now: now, logger: logger}
}

func nonceKey(displayID, nonce string) string {
	return NonceKeyPrefix + displayID + ":" + nonce
}

// Consume returns model.ErrNonceReplayed when the pair already exists.
func (l *RedisNonceLedger) Consume(ctx context.Context, displayID, nonce string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := l.client.SetNX(ctx, nonceKey(displayID, nonce), 1, ttl).Result()
	if err != nil {
		l.logger.WithError(err).WithField("display_id", displayID).Error("nonce ledger write failed")
		return fmt.Errorf("consume nonce: %w", err)
	}
	if !ok {
		return model.ErrNonceReplayed
	}
	return nil
}
