package core

import "context"

// Host is the narrow view of a running bot that toppy reads from.
// toppy never owns the host and never rewrites its lifecycle.
type Host interface {
	// WaitUntilReady blocks until the host's gateway connection is ready.
	WaitUntilReady(ctx context.Context) error

	// IsClosed reports whether the host has shut down.
	IsClosed() bool

	// BotID returns the application id, falling back to the user id.
	BotID() (uint64, error)

	// Stats returns the current live statistics.
	Stats() StatsSnapshot

	// Dispatch delivers an event to the host's listeners.
	Dispatch(event Event)
}

// Attacher is called by the host's own startup and shutdown sequence.
type Attacher interface {
	Attach(ctx context.Context, host Host) error
	Detach(ctx context.Context) error
}

// VoteCache persists received votes.
type VoteCache interface {
	Connect(ctx context.Context) error
	Insert(ctx context.Context, payload *VotePayload) (CachedVote, error)
	FetchOne(ctx context.Context, number int64) (CachedVote, error)
	FetchMany(ctx context.Context) ([]CachedVote, error)
	Query(ctx context.Context, query VoteQuery) ([]CachedVote, error)
	Close() error
}
