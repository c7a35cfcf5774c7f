package dictionary

import (
	"context"
	"fmt"
	"strings"

	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding the shared vocabulary.
const DefaultRedisKey = "wordmend:vocab"

// pushBatch bounds the members sent per ZADD.
const pushBatch = 1000

// RedisStore mirrors a vocabulary in a Redis sorted set with the word as
// member and its frequency as score.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore creates a store on key. An empty key uses DefaultRedisKey.
func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Key returns the sorted set name.
func (rs *RedisStore) Key() string { return rs.key }

// Ping checks the connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Push replaces the stored set with the vocabulary of t in one transaction.
func (rs *RedisStore) Push(ctx context.Context, t *trie.Trie) (int, error) {
	words := t.Words()
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rs.key)
		for start := 0; start < len(words); start += pushBatch {
			end := min(start+pushBatch, len(words))
			members := make([]redis.Z, 0, end-start)
			for _, c := range words[start:end] {
				members = append(members, redis.Z{Score: float64(c.Frequency), Member: c.Word})
			}
			pipe.ZAdd(ctx, rs.key, members...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to push vocabulary to %s: %w", rs.key, err)
	}
	log.Debugf("pushed %d words to redis key %s", len(words), rs.key)
	return len(words), nil
}

// Pull replaces the vocabulary of t with the stored set. t is untouched
// when the read fails.
func (rs *RedisStore) Pull(ctx context.Context, t *trie.Trie) (LoadResult, error) {
	res := LoadResult{Path: "redis:" + rs.key}
	members, err := rs.client.ZRangeWithScores(ctx, rs.key, 0, -1).Result()
	if err != nil {
		return res, fmt.Errorf("failed to pull vocabulary from %s: %w", rs.key, err)
	}

	fresh := trie.New(trie.WithWildcard(t.Wildcard()))
	for _, z := range members {
		res.Lines++
		word, ok := z.Member.(string)
		if !ok {
			res.Skipped++
			continue
		}
		if err := fresh.Insert(strings.ToLower(word), int(z.Score)); err != nil {
			log.Warnf("skipping redis member %q: %v", word, err)
			res.Skipped++
			continue
		}
		res.Inserted++
	}

	res.Cleared = t.UniqueWords() > 0
	t.Replace(fresh)
	return res, nil
}

// Add increments the stored frequency of word by count.
func (rs *RedisStore) Add(ctx context.Context, word string, count int) error {
	return rs.client.ZIncrBy(ctx, rs.key, float64(count), strings.ToLower(word)).Err()
}

// Remove deletes word from the stored set.
func (rs *RedisStore) Remove(ctx context.Context, word string) error {
	return rs.client.ZRem(ctx, rs.key, strings.ToLower(word)).Err()
}
