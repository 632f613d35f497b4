package votecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TheMaster3558/toppy/internal/core"
)

// RedisCache shares votes between processes. INCR hands out numbers, each
// vote is a hash and a list keeps insertion order.
type RedisCache struct {
	Client *redis.Client
	Prefix string

	mu sync.Mutex
}

// NewRedisCache returns a cache over client with keys under prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "toppy"
	}
	return &RedisCache{Client: client, Prefix: prefix}
}

func (c *RedisCache) seqKey() string   { return c.Prefix + ":votes:seq" }
func (c *RedisCache) orderKey() string { return c.Prefix + ":votes:order" }
func (c *RedisCache) voteKey(number int64) string {
	return c.Prefix + ":votes:" + strconv.FormatInt(number, 10)
}

// Connect verifies the server is reachable.
func (c *RedisCache) Connect(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("redis vote cache is not configured")
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis vote cache: %w", err)
	}
	return nil
}

// Insert stores the vote under the next sequence number.
func (c *RedisCache) Insert(ctx context.Context, payload *core.VotePayload) (core.CachedVote, error) {
	if payload == nil {
		return core.CachedVote{}, errors.New("vote payload is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	number, err := c.Client.Incr(ctx, c.seqKey()).Result()
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("allocate vote number: %w", err)
	}
	vote := core.NewCachedVote(number, payload)

	_, err = c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.voteKey(number),
			"number", vote.Number,
			"user_id", strconv.FormatUint(vote.UserID, 10),
			"time", vote.Time.Format(time.RFC3339Nano),
			"site", string(vote.Site))
		pipe.RPush(ctx, c.orderKey(), number)
		return nil
	})
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("store vote %d: %w", number, err)
	}
	return vote, nil
}

// FetchOne returns the vote with the given number.
func (c *RedisCache) FetchOne(ctx context.Context, number int64) (core.CachedVote, error) {
	fields, err := c.Client.HGetAll(ctx, c.voteKey(number)).Result()
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("fetch vote %d: %w", number, err)
	}
	if len(fields) == 0 {
		return core.CachedVote{}, fmt.Errorf("vote %d: %w", number, core.ErrVoteNotFound)
	}
	return parseRedisVote(fields)
}

// FetchMany returns every vote in insertion order.
func (c *RedisCache) FetchMany(ctx context.Context) ([]core.CachedVote, error) {
	return c.Query(ctx, core.VoteQuery{})
}

// Query filters votes in insertion order.
func (c *RedisCache) Query(ctx context.Context, q core.VoteQuery) ([]core.CachedVote, error) {
	numbers, err := c.Client.LRange(ctx, c.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	if len(numbers) == 0 {
		return []core.CachedVote{}, nil
	}

	pipe := c.Client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(numbers))
	for _, raw := range numbers {
		number, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vote number %q: %w", raw, err)
		}
		cmds = append(cmds, pipe.HGetAll(ctx, c.voteKey(number)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetch votes: %w", err)
	}

	votes := make([]core.CachedVote, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		vote, err := parseRedisVote(fields)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	return filterVotes(votes, q), nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func parseRedisVote(fields map[string]string) (core.CachedVote, error) {
	number, err := strconv.ParseInt(fields["number"], 10, 64)
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("invalid vote number %q: %w", fields["number"], err)
	}
	userID, err := strconv.ParseUint(fields["user_id"], 10, 64)
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("vote %d: invalid user id: %w", number, err)
	}
	at, err := time.Parse(time.RFC3339Nano, fields["time"])
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("vote %d: invalid time: %w", number, err)
	}
	return core.CachedVote{
		Number: number,
		UserID: userID,
		Time:   at.UTC(),
		Site:   core.Site(fields["site"]),
	}, nil
}
