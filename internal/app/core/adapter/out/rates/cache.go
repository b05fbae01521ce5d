package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

const keyPrefix = "cash-ledger:rate:"

// CachedLookup 在 Redis 快取匯率，命中時不呼叫外部服務
// Redis 故障只會退回直接查詢，不影響換算結果
type CachedLookup struct {
	next   usecase.RateLookup
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLookup 包裝一個 RateLookup
func NewCachedLookup(next usecase.RateLookup, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{next: next, client: client, ttl: ttl, logger: logger}
}

func rateKey(from, to string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, from, to)
}

// Convert 先查快取的匯率，沒有再向下游查詢並寫回
func (c *CachedLookup) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	key := rateKey(from, to)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if fx, parseErr := decimal.NewFromString(raw); parseErr == nil {
			return domain.Conversion{From: from, To: to, Amount: amount.Mul(fx), Rate: fx}, nil
		}
		c.logger.Warn("drop malformed cached rate", zap.String("key", key), zap.String("value", raw))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Debug("rate cache unavailable", zap.String("key", key), zap.Error(err))
	}

	conv, err := c.next.Convert(ctx, amount, from, to)
	if err != nil {
		return domain.Conversion{}, err
	}
	if conv.Rate.IsPositive() {
		if err := c.client.Set(ctx, key, conv.Rate.String(), c.ttl).Err(); err != nil {
			c.logger.Debug("rate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return conv, nil
}

var _ usecase.RateLookup = (*CachedLookup)(nil)
