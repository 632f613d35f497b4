// Package votecache provides the file and Redis vote cache backends and
// selects a backend from configuration.
package votecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheMaster3558/toppy/internal/core"
	"github.com/TheMaster3558/toppy/internal/core/store"
)

// JSONFileName is the votes file inside the cache directory.
const JSONFileName = "votes.json"

// JSONCache keeps every vote in a single JSON array file. The whole file is
// rewritten on each insert.
type JSONCache struct {
	Path string

	mu        sync.Mutex
	votes     []core.CachedVote
	connected bool
}

// NewJSONCache returns a cache stored at dir/votes.json.
func NewJSONCache(dir string) *JSONCache {
	return &JSONCache{Path: filepath.Join(dir, JSONFileName)}
}

// Connect loads existing votes; a missing file is an empty cache.
func (c *JSONCache) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.votes = nil
	case err != nil:
		return fmt.Errorf("read vote cache: %w", err)
	default:
		var votes []core.CachedVote
		if len(data) > 0 {
			if err := json.Unmarshal(data, &votes); err != nil {
				return fmt.Errorf("parse vote cache %s: %w", c.Path, err)
			}
		}
		c.votes = votes
	}
	c.connected = true
	return nil
}

// Insert appends the vote with the next number.
func (c *JSONCache) Insert(ctx context.Context, payload *core.VotePayload) (core.CachedVote, error) {
	if payload == nil {
		return core.CachedVote{}, errors.New("vote payload is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return core.CachedVote{}, errors.New("json vote cache is not connected")
	}

	var last int64
	if n := len(c.votes); n > 0 {
		last = c.votes[n-1].Number
	}
	vote := core.NewCachedVote(last+1, payload)

	next := append(append([]core.CachedVote(nil), c.votes...), vote)
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("encode vote cache: %w", err)
	}
	if err := store.WriteFileAtomic(c.Path, data, 0644); err != nil {
		return core.CachedVote{}, err
	}

	c.votes = next
	return vote, nil
}

// FetchOne returns the vote with the given number.
func (c *JSONCache) FetchOne(ctx context.Context, number int64) (core.CachedVote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, vote := range c.votes {
		if vote.Number == number {
			return vote, nil
		}
	}
	return core.CachedVote{}, fmt.Errorf("vote %d: %w", number, core.ErrVoteNotFound)
}

// FetchMany returns every vote in insertion order.
func (c *JSONCache) FetchMany(ctx context.Context) ([]core.CachedVote, error) {
	return c.Query(ctx, core.VoteQuery{})
}

// Query filters votes in insertion order.
func (c *JSONCache) Query(ctx context.Context, q core.VoteQuery) ([]core.CachedVote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return filterVotes(c.votes, q), nil
}

// Close is a no-op; every insert is already on disk.
func (c *JSONCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// filterVotes applies q to votes already in insertion order.
func filterVotes(votes []core.CachedVote, q core.VoteQuery) []core.CachedVote {
	matched := make([]core.CachedVote, 0, len(votes))
	for _, vote := range votes {
		if q.Match(vote) {
			matched = append(matched, vote)
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[len(matched)-q.Limit:]
	}
	return matched
}
