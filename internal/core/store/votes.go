package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
)

// sq is a squirrel builder for sqlite placeholders
var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// VoteCache keeps received votes in the votes table. Numbers come from a
// sidecar sequence file so they survive a rebuilt database.
type VoteCache struct {
	Open     OpenFunc
	CacheDir string
	Logger   *zap.Logger

	mu    sync.Mutex
	store *Store
	seq   Sequence
	last  int64
}

// OpenFunc opens the backing store.
type OpenFunc func(ctx context.Context) (*Store, error)

// NewVoteCache returns an unconnected SQL vote cache over cfg.
func NewVoteCache(cfg config.StoreConfig, cacheDir string) *VoteCache {
	return &VoteCache{
		Open:     func(ctx context.Context) (*Store, error) { return Open(ctx, cfg) },
		CacheDir: cacheDir,
	}
}

// Connect opens the database, ensures the schema and restores the counter.
// A missing sidecar is rebuilt from the highest stored number.
func (c *VoteCache) Connect(ctx context.Context) error {
	if c == nil || c.Open == nil {
		return errors.New("sql vote cache is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return nil
	}

	store, err := c.Open(ctx)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return err
	}

	seq := Sequence{Path: filepath.Join(c.CacheDir, SequenceFileName)}
	stored, ok, err := seq.Load()
	if err != nil {
		_ = store.Close()
		return err
	}
	maxNumber, err := maxVoteNumber(ctx, store.DB)
	if err != nil {
		_ = store.Close()
		return err
	}
	if !ok || maxNumber > stored {
		stored = maxNumber
	}

	c.store = store
	c.seq = seq
	c.last = stored
	return nil
}

// Insert assigns the next number and persists the vote. Once the row is
// written the vote counts even if the sidecar cannot be updated; Connect
// recovers the counter from the table.
func (c *VoteCache) Insert(ctx context.Context, payload *core.VotePayload) (core.CachedVote, error) {
	if payload == nil {
		return core.CachedVote{}, errors.New("vote payload is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return core.CachedVote{}, err
	}

	vote := core.NewCachedVote(c.last+1, payload)
	query, args, err := sq.Insert("votes").
		Columns("number", "user_id", "time", "site").
		Values(vote.Number, int64(vote.UserID), vote.Time.Format(time.RFC3339Nano), string(vote.Site)).
		ToSql()
	if err != nil {
		return core.CachedVote{}, fmt.Errorf("build vote insert: %w", err)
	}
	if _, err := c.store.DB.ExecContext(ctx, query, args...); err != nil {
		return core.CachedVote{}, fmt.Errorf("insert vote: %w", err)
	}

	c.last = vote.Number

	if err := c.seq.Store(vote.Number); err != nil {
		c.logger().Warn("Failed to update vote sequence",
			zap.String("path", c.seq.Path),
			zap.Int64("number", vote.Number),
			zap.Error(err))
	}
	return vote, nil
}

// FetchOne returns the vote with the given number.
func (c *VoteCache) FetchOne(ctx context.Context, number int64) (core.CachedVote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return core.CachedVote{}, err
	}

	votes, err := c.selectVotes(ctx, sq.Select("number", "user_id", "time", "site").
		From("votes").
		Where(squirrel.Eq{"number": number}))
	if err != nil {
		return core.CachedVote{}, err
	}
	if len(votes) == 0 {
		return core.CachedVote{}, fmt.Errorf("vote %d: %w", number, core.ErrVoteNotFound)
	}
	return votes[0], nil
}

// FetchMany returns every vote in insertion order.
func (c *VoteCache) FetchMany(ctx context.Context) ([]core.CachedVote, error) {
	return c.Query(ctx, core.VoteQuery{})
}

// Query returns votes matching q in insertion order. A positive limit keeps
// the most recent matches.
func (c *VoteCache) Query(ctx context.Context, q core.VoteQuery) ([]core.CachedVote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return nil, err
	}

	builder := sq.Select("number", "user_id", "time", "site").From("votes")
	if q.Site != "" {
		builder = builder.Where(squirrel.Eq{"site": string(q.Site)})
	}
	if q.Limit > 0 {
		builder = builder.OrderBy("number DESC").Limit(uint64(q.Limit))
	} else {
		builder = builder.OrderBy("number ASC")
	}

	votes, err := c.selectVotes(ctx, builder)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		for i, j := 0, len(votes)-1; i < j; i, j = i+1, j-1 {
			votes[i], votes[j] = votes[j], votes[i]
		}
	}
	return votes, nil
}

// Close releases the database.
func (c *VoteCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func (c *VoteCache) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *VoteCache) ready() error {
	if c.store == nil {
		return errors.New("sql vote cache is not connected")
	}
	return nil
}

func (c *VoteCache) selectVotes(ctx context.Context, builder squirrel.SelectBuilder) ([]core.CachedVote, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build vote query: %w", err)
	}

	rows, err := c.store.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var votes []core.CachedVote
	for rows.Next() {
		var (
			number  int64
			userID  int64
			rawTime string
			site    string
		)
		if err := rows.Scan(&number, &userID, &rawTime, &site); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(rawTime))
		if err != nil {
			return nil, fmt.Errorf("vote %d: invalid time %q: %w", number, rawTime, err)
		}
		votes = append(votes, core.CachedVote{
			Number: number,
			UserID: uint64(userID),
			Time:   at.UTC(),
			Site:   core.Site(site),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	return votes, nil
}

func maxVoteNumber(ctx context.Context, db *sql.DB) (int64, error) {
	query, args, err := sq.Select("COALESCE(MAX(number), 0)").From("votes").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build vote sequence query: %w", err)
	}
	var maxNumber int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&maxNumber); err != nil {
		return 0, fmt.Errorf("read vote sequence: %w", err)
	}
	return maxNumber, nil
}
