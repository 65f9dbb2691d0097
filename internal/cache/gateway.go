package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
)

// Namespace prefixes every key written by the gateway
const Namespace = "strava_stats"

// ErrMiss is returned by a Backend when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Backend is the key/value store behind the gateway. Implementations must be
// safe for concurrent use and atomic per key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix and returns how many
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Clear(ctx context.Context) error
	Name() string
}

// Kind names a class of cached value
type Kind string

const (
	KindActivities     Kind = "activities"
	KindGeneralStats   Kind = "general_stats"
	KindMonthlyStats   Kind = "monthly_stats"
	KindSportTypeStats Kind = "sport_type_stats"
	KindWeeklyStats    Kind = "weekly_stats"
	KindSportTypes     Kind = "sport_types"
)

// Class selects the TTL applied to a kind
type Class int

const (
	// ClassStats covers derived statistics, cheap to recompute
	ClassStats Class = iota
	// ClassActivities covers raw activity data fetched from Strava
	ClassActivities
)

// Class returns the TTL class of the kind
func (k Kind) Class() Class {
	if k == KindActivities {
		return ClassActivities
	}
	return ClassStats
}

// TTLs holds the lifetime of each class
type TTLs struct {
	Activities time.Duration
	Stats      time.Duration
}

// For returns the TTL of class c
func (t TTLs) For(c Class) time.Duration {
	if c == ClassActivities {
		return t.Activities
	}
	return t.Stats
}

// Key identifies one cached value
type Key struct {
	Kind   Kind
	UserID string
	Params []string
}

// NewKey builds a key for kind, user and params
func NewKey(kind Kind, userID string, params ...string) Key {
	return Key{Kind: kind, UserID: userID, Params: params}
}

// String derives the storage key. The same tuple always yields the same
// string; the user segment lets InvalidateUser delete by prefix.
func (k Key) String() string {
	var sb strings.Builder
	// length-prefixed parts so ("a:b") and ("a", "b") never collide
	for _, part := range append([]string{string(k.Kind), k.UserID}, k.Params...) {
		fmt.Fprintf(&sb, "%d:%s|", len(part), part)
	}
	return fmt.Sprintf("%s%s:%s", UserPrefix(k.UserID), k.Kind, md5Hex(sb.String()))
}

// UserPrefix is the key prefix shared by every entry of userID
func UserPrefix(userID string) string {
	return fmt.Sprintf("%s:%s:", Namespace, md5Hex(userID)[:12])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Gateway is the result cache used around expensive computations. Lookups
// that fail for any reason report a miss; writes that fail are logged and
// dropped. A nil backend disables caching.
type Gateway struct {
	backend Backend
	ttls    TTLs
	metrics *metrics.Manager
}

// NewGateway wraps backend with JSON encoding and TTL classes
func NewGateway(backend Backend, ttls TTLs, m *metrics.Manager) *Gateway {
	return &Gateway{
		backend: backend,
		ttls:    ttls,
		metrics: m,
	}
}

// TTLs returns the configured lifetimes
func (g *Gateway) TTLs() TTLs {
	return g.ttls
}

// Get decodes the value stored under key into dest and reports whether it
// was found. A miss is not an error.
func (g *Gateway) Get(ctx context.Context, key Key, dest any) bool {
	if g == nil || g.backend == nil {
		return false
	}
	log := logging.Logger

	raw, err := g.backend.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, ErrMiss) {
			g.metrics.ObserveCache(string(key.Kind), metrics.CacheMiss)
			log.Debug().Str("kind", string(key.Kind)).Str("user", key.UserID).Msg("cache miss")
		} else {
			g.metrics.ObserveCache(string(key.Kind), metrics.CacheError)
			log.Error().Err(err).Str("kind", string(key.Kind)).Str("backend", g.backend.Name()).Msg("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		g.metrics.ObserveCache(string(key.Kind), metrics.CacheError)
		log.Error().Err(err).Str("kind", string(key.Kind)).Msg("failed to decode cached value")
		return false
	}

	g.metrics.ObserveCache(string(key.Kind), metrics.CacheHit)
	log.Debug().Str("kind", string(key.Kind)).Str("user", key.UserID).Msg("cache hit")
	return true
}

// Set stores value under key with the TTL of the key's class
func (g *Gateway) Set(ctx context.Context, key Key, value any) {
	if g == nil {
		return
	}
	g.SetWithTTL(ctx, key, value, g.ttls.For(key.Kind.Class()))
}

// SetWithTTL stores value under key for ttl
func (g *Gateway) SetWithTTL(ctx context.Context, key Key, value any, ttl time.Duration) {
	if g == nil || g.backend == nil {
		return
	}
	log := logging.Logger

	raw, err := json.Marshal(value)
	if err != nil {
		g.metrics.ObserveCache(string(key.Kind), metrics.CacheError)
		log.Error().Err(err).Str("kind", string(key.Kind)).Msg("failed to encode value for cache")
		return
	}

	if err := g.backend.Set(ctx, key.String(), raw, ttl); err != nil {
		g.metrics.ObserveCache(string(key.Kind), metrics.CacheError)
		log.Error().Err(err).Str("kind", string(key.Kind)).Str("backend", g.backend.Name()).Msg("cache write failed")
		return
	}

	g.metrics.ObserveCache(string(key.Kind), metrics.CacheStore)
	log.Debug().
		Str("kind", string(key.Kind)).
		Str("user", key.UserID).
		Dur("ttl", ttl).
		Int("bytes", len(raw)).
		Msg("cached value")
}

// InvalidateUser drops every entry of userID and returns how many were removed
func (g *Gateway) InvalidateUser(ctx context.Context, userID string) int {
	if g == nil || g.backend == nil {
		return 0
	}
	log := logging.Logger

	n, err := g.backend.DeletePrefix(ctx, UserPrefix(userID))
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("failed to invalidate user cache")
		return n
	}
	log.Info().Str("user", userID).Int("removed", n).Msg("user cache invalidated")
	return n
}

// Clear drops every entry of the backend
func (g *Gateway) Clear(ctx context.Context) {
	if g == nil || g.backend == nil {
		return
	}
	if err := g.backend.Clear(ctx); err != nil {
		logging.Logger.Error().Err(err).Msg("failed to clear cache")
		return
	}
	logging.Logger.Info().Str("backend", g.backend.Name()).Msg("cache cleared")
}
