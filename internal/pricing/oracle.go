package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Oracle serves fixed-point quotes for currency pairs. Supports is checked
// once at service construction; an unsupported pair fails startup. The price
// oracle is an external collaborator, specified only at this boundary.
type Oracle interface {
	Supports(ctx context.Context, pair string) (bool, error)
	Quote(ctx context.Context, pair string) (Quote, error)
}

const quoteKeyPrefix = "bestiary:quote:"

// CachedOracle decorates an Oracle with a short-lived Redis cache so repeated
// claim submissions inside one quote interval do not hammer the upstream.
// Cache misses and Redis failures fall through to the upstream oracle.
type CachedOracle struct {
	upstream Oracle
	client   *redis.Client
	ttl      time.Duration
}

// NewCachedOracle wraps upstream with a Redis quote cache.
func NewCachedOracle(upstream Oracle, client *redis.Client, ttl time.Duration) *CachedOracle {
	return &CachedOracle{upstream: upstream, client: client, ttl: ttl}
}

func (c *CachedOracle) Supports(ctx context.Context, pair string) (bool, error) {
	return c.upstream.Supports(ctx, pair)
}

// cachedQuote is the Redis wire form; big.Ints travel as decimal strings.
type cachedQuote struct {
	Price      string    `json:"price"`
	Scale      string    `json:"scale"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence uint64    `json:"confidence"`
}

func (c *CachedOracle) Quote(ctx context.Context, pair string) (Quote, error) {
	key := quoteKeyPrefix + pair
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedQuote
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			if q, ok := cached.toQuote(); ok {
				return q, nil
			}
		}
		// Corrupt cache entry; fall through and refresh.
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return Quote{}, ctx.Err()
	}

	quote, err := c.upstream.Quote(ctx, pair)
	if err != nil {
		return Quote{}, err
	}
	payload, err := json.Marshal(cachedQuote{
		Price:      quote.Price.String(),
		Scale:      quote.Scale.String(),
		Timestamp:  quote.Timestamp,
		Confidence: quote.Confidence,
	})
	if err != nil {
		return Quote{}, fmt.Errorf("marshal quote: %w", err)
	}
	// Best effort: a failed cache write must not fail the quote.
	c.client.Set(ctx, key, payload, c.ttl)
	return quote, nil
}

func (q cachedQuote) toQuote() (Quote, bool) {
	price, ok := new(big.Int).SetString(q.Price, 10)
	if !ok {
		return Quote{}, false
	}
	scale, ok := new(big.Int).SetString(q.Scale, 10)
	if !ok {
		return Quote{}, false
	}
	return Quote{Price: price, Scale: scale, Timestamp: q.Timestamp, Confidence: q.Confidence}, true
}
