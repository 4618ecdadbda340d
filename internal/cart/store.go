package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	redisclient "github.com/avolkov/storefront-backend/pkg/redis"
)

// Entry is a single cart line: how many units and the unit price locked
// in when the product was first added.
type Entry struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

// Contents maps product id to its cart entry. Keys are product UUIDs in
// string form so the structure round-trips through JSON unchanged.
type Contents map[string]Entry

// TotalCost returns the sum of price times count over all entries.
func (c Contents) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range c {
		total = total.Add(entry.Price.Mul(decimal.NewFromInt(int64(entry.Count))))
	}
	return total
}

// Store persists cart contents keyed by session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (Contents, error)
	Save(ctx context.Context, sessionID string, contents Contents) error
	Clear(ctx context.Context, sessionID string) error
}

type redisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisStore builds a cart store backed by the shared redis client.
func NewRedisStore(client *redisclient.Client, ttl time.Duration) (Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) Load(ctx context.Context, sessionID string) (Contents, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(sessionID))
	if err != nil {
		if redisclient.IsNil(err) {
			return Contents{}, nil
		}
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	var contents Contents
	if err := json.Unmarshal([]byte(raw), &contents); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	if contents == nil {
		contents = Contents{}
	}
	return contents, nil
}

func (s *redisStore) Save(ctx context.Context, sessionID string, contents Contents) error {
	raw, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	if err := s.client.Set(ctx, s.client.CartKey(sessionID), string(raw), s.ttl); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.client.CartKey(sessionID)); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
