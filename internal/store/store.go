// Package store models the external hash-and-set key-value backend the
// registry persists all state into: any engine supporting {hset, hget,
// hgetall, del, sadd, srem, smembers, expire, ping, keys_with_prefix,
// flush_prefix} with atomic single-key semantics satisfies the interface.
package store

import (
	"context"
	"time"
)

// Store is the persistence contract the registry depends on. Every method
// is atomic at the single-key level; the registry never requires a
// multi-key transaction across these calls.
type Store interface {
	// HSet writes an entire hash in one call, replacing any previous
	// contents, and applies ttl if ttl > 0.
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	// HGet reads a single hash field. ok is false if the key or field is
	// absent.
	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	// HGetAll reads every field of a hash. ok is false if the key is absent.
	HGetAll(ctx context.Context, key string) (fields map[string]string, ok bool, err error)
	// Del removes a key entirely, hash or set.
	Del(ctx context.Context, key string) error
	// SAdd adds a member to a set, creating it if absent, and applies ttl
	// if ttl > 0.
	SAdd(ctx context.Context, key string, member string, ttl time.Duration) error
	// SRem removes a member from a set.
	SRem(ctx context.Context, key string, member string) error
	// SMembers lists every member of a set.
	SMembers(ctx context.Context, key string) ([]string, error)
	// Expire refreshes a key's TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error
	// KeysWithPrefix lists every key starting with prefix.
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
	// FlushPrefix deletes every key starting with prefix and returns the
	// count deleted.
	FlushPrefix(ctx context.Context, prefix string) (int, error)
	// Close releases any underlying connection resources.
	Close() error
}

// KeyPrefix is prepended to every key the registry writes.
const KeyPrefix = "netring:"

// MemberKey returns the hash key for an active member record.
func MemberKey(id string) string { return KeyPrefix + "member:" + id }

// DeregisteredKey returns the hash key for a deregistered member record.
func DeregisteredKey(id string) string { return KeyPrefix + "deregistered:" + id }

// MetricsKey returns the hash key for a member's latest metric report.
func MetricsKey(id string) string { return KeyPrefix + "metrics:" + id }

// ActiveMembersKey is the set of currently active member ids.
const ActiveMembersKey = KeyPrefix + "active_members"

// DeregisteredMembersKey is the set of recently deregistered member ids.
const DeregisteredMembersKey = KeyPrefix + "deregistered_members"

// ReportingMembersKey is the set of member ids with a fresh metric report.
const ReportingMembersKey = KeyPrefix + "reporting_members"

// DeregisteredTTL is the fixed retention window for deregistered records.
const DeregisteredTTL = time.Hour

// MetricsTTL is the fixed retention window for metric reports.
const MetricsTTL = 5 * time.Minute
