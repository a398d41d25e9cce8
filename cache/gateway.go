// Package cache is the read-through cache in front of the document store.
// Entries are a best-effort accelerator: every write path deletes the keys it
// affects after the store write, and a cache outage degrades to store reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trello-project/microservices/taskgraph-service/logging"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
)

const DefaultTTL = time.Hour

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend is a byte-oriented key/value store with per-entry expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

func TaskKey(id string) string    { return "task_" + id }
func TeamKey(id string) string    { return "team_" + id }
func UserKey(id string) string    { return "user_" + id }
func ProjectKey(id string) string { return "project_" + id }

// Gateway encodes values as BSON and guards the backend with a circuit
// breaker so a dead cache costs one fast failure instead of a timeout per
// request.
type Gateway struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

func NewGateway(backend Backend, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
	})
	return &Gateway{backend: backend, breaker: breaker, ttl: ttl}
}

// TTL is the expiry applied to every entry; a non-positive ttl passed to
// NewGateway becomes DefaultTTL.
func (g *Gateway) TTL() time.Duration {
	return g.ttl
}

// Get decodes the entry under key into dst. It reports false on a miss.
func (g *Gateway) Get(ctx context.Context, key string, dst any) (bool, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.backend.Get(ctx, key)
	})
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	raw := bson.Raw(res.([]byte))
	if err := raw.Validate(); err != nil {
		return false, fmt.Errorf("cache entry %s is corrupt: %w", key, err)
	}
	val, err := raw.LookupErr("v")
	if err != nil {
		return false, fmt.Errorf("cache entry %s has no value: %w", key, err)
	}
	if err := val.Unmarshal(dst); err != nil {
		return false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return true, nil
}

func (g *Gateway) Put(ctx context.Context, key string, value any) error {
	data, err := bson.Marshal(bson.M{"v": value})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	_, err = g.breaker.Execute(func() (interface{}, error) {
		return nil, g.backend.Set(ctx, key, data, g.ttl)
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes keys. Missing keys are not an error.
func (g *Gateway) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.backend.Del(ctx, keys...)
	})
	if err != nil {
		return fmt.Errorf("cache delete %v: %w", keys, err)
	}
	return nil
}

// Fetch is the read-through path: serve key from the cache, otherwise load
// from the store and populate the entry. Cache errors are logged and never
// returned; load errors are returned as is.
func Fetch[T any](ctx context.Context, g *Gateway, key string, load func(context.Context) (*T, error)) (*T, error) {
	if g != nil {
		var cached T
		hit, err := g.Get(ctx, key, &cached)
		if err != nil {
			logging.Logger.Warnf("Event ID: CACHE_READ_FAILED, Description: Falling back to store for %s: %v", key, err)
		}
		if hit {
			return &cached, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if g != nil {
		if err := g.Put(ctx, key, v); err != nil {
			logging.Logger.Warnf("Event ID: CACHE_WRITE_FAILED, Description: Could not populate %s: %v", key, err)
		}
	}
	return v, nil
}
