package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/model"
)

const (
	answerKeyPrefix = "rag:answer:"
	clearScanCount  = 200
)

// AnswerEntry is the cached record for one (role, query) pair: the prior
// answer and its citations, returned verbatim on a hit.
type AnswerEntry struct {
	Question string         `json:"question"`
	Role     string         `json:"role"`
	Answer   string         `json:"answer"`
	Sources  []model.Source `json:"sources"`
	CachedAt time.Time      `json:"cached_at"`
}

// Key derives the deterministic cache key for a (role, query) pair: hex
// SHA-256 over "role::normalized query". Binding the role into the hash is
// what keeps one role's answers invisible to every other role.
func Key(role access.Role, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(string(role) + "::" + normalized))
	return hex.EncodeToString(sum[:])
}

type AnswerCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redisv9.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AnswerCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *AnswerCache) Get(ctx context.Context, role access.Role, query string) (*AnswerEntry, bool, error) {
	raw, err := c.client.Get(ctx, answerKeyPrefix+Key(role, query)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get answer failed: %w", err)
	}

	var entry AnswerEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached answer failed: %w", err)
	}
	return &entry, true, nil
}

func (c *AnswerCache) Put(ctx context.Context, role access.Role, query string, entry AnswerEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal answer cache failed: %w", err)
	}
	if err := c.client.Set(ctx, answerKeyPrefix+Key(role, query), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// Clear deletes every cached answer. Called only by the ingestion path:
// any document change discards the whole keyspace rather than trying to
// target entries, so invalidation can never under-clear.
func (c *AnswerCache) Clear(ctx context.Context) (int, error) {
	iter := c.client.Scan(ctx, 0, answerKeyPrefix+"*", clearScanCount).Iterator()
	next := func(ctx context.Context) (string, bool, error) {
		if !iter.Next(ctx) {
			return "", false, iter.Err()
		}
		return iter.Val(), true, nil
	}
	del := func(ctx context.Context, keys []string) error {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete answers failed: %w", err)
		}
		return nil
	}
	return deleteInBatches(ctx, clearScanCount, next, del)
}

// deleteInBatches drains keys from next and deletes them batchSize at a
// time, returning how many were deleted before any failure.
func deleteInBatches(
	ctx context.Context,
	batchSize int,
	next func(context.Context) (string, bool, error),
	del func(context.Context, []string) error,
) (int, error) {
	deleted := 0
	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := del(ctx, batch); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		key, ok, err := next(ctx)
		if err != nil {
			return deleted, fmt.Errorf("redis scan answers failed: %w", err)
		}
		if !ok {
			break
		}
		batch = append(batch, key)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
