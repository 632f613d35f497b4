// Package discordhost adapts a discordgo session to the host capabilities
// toppy reads: readiness, the bot id, live statistics and event dispatch.
package discordhost

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/core"
)

// Intents are the gateway intents the adapter needs for guild and voice counts.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

// Handler receives dispatched toppy events.
type Handler func(event core.Event)

// Host wraps a session the caller owns. toppy components hook into the
// session's lifecycle through AddAttacher.
type Host struct {
	Session *discordgo.Session

	logger    *zap.Logger
	ready     chan struct{}
	readyOnce sync.Once
	closed    atomic.Bool
	appID     atomic.Uint64

	mu        sync.RWMutex
	handlers  map[string][]*Handler
	attachers []core.Attacher
}

// New opens no connection; it builds a bot session for token and wraps it.
func New(token string, logger *zap.Logger) (*Host, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return Wrap(session, logger), nil
}

// Wrap adapts an existing session.
func Wrap(session *discordgo.Session, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		Session:  session,
		logger:   logger,
		ready:    make(chan struct{}),
		handlers: make(map[string][]*Handler),
	}
	session.AddHandler(h.onReady)
	session.AddHandler(h.onEvent)
	return h
}

func (h *Host) onReady(_ *discordgo.Session, e *discordgo.Ready) {
	h.readyOnce.Do(func() {
		fields := []zap.Field{zap.Int("guilds", len(e.Guilds))}
		if e.User != nil {
			fields = append(fields, zap.String("user", e.User.String()))
		}
		h.logger.Info("Discord session ready", fields...)
		close(h.ready)
	})
}

// readyApplication is the part of the raw READY payload discordgo does not
// surface on this version.
type readyApplication struct {
	Application *struct {
		ID string `json:"id"`
	} `json:"application"`
}

func (h *Host) onEvent(_ *discordgo.Session, e *discordgo.Event) {
	if e == nil || e.Type != "READY" || len(e.RawData) == 0 {
		return
	}
	var ready readyApplication
	if err := json.Unmarshal(e.RawData, &ready); err != nil || ready.Application == nil {
		return
	}
	if err := h.SetApplicationID(ready.Application.ID); err != nil {
		h.logger.Warn("Ignoring application id from ready payload", zap.Error(err))
	}
}

// SetApplicationID records the application id BotID reports.
func (h *Host) SetApplicationID(id string) error {
	parsed, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("parse application id %q: %w", id, err)
	}
	h.appID.Store(parsed)
	return nil
}

// AddAttacher registers a component that is attached on Open and detached on Close.
func (h *Host) AddAttacher(a core.Attacher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attachers = append(h.attachers, a)
}

// Handle subscribes fn to events with the given name, e.g. "topgg_vote" or
// "dbl_post_error". The returned function unsubscribes.
func (h *Host) Handle(name string, fn Handler) func() {
	entry := &fn
	h.mu.Lock()
	h.handlers[name] = append(h.handlers[name], entry)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.handlers[name]
		for i, candidate := range list {
			if candidate == entry {
				h.handlers[name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Open connects the session, then attaches registered components.
func (h *Host) Open(ctx context.Context) error {
	if err := h.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	h.mu.RLock()
	attachers := append([]core.Attacher(nil), h.attachers...)
	h.mu.RUnlock()

	var errs error
	for _, a := range attachers {
		errs = multierr.Append(errs, a.Attach(ctx, h))
	}
	return errs
}

// Close detaches components in reverse order, then closes the session.
func (h *Host) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.RLock()
	attachers := append([]core.Attacher(nil), h.attachers...)
	h.mu.RUnlock()

	var errs error
	for i := len(attachers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, attachers[i].Detach(ctx))
	}
	return multierr.Append(errs, h.Session.Close())
}

// WaitUntilReady blocks until the first READY event.
func (h *Host) WaitUntilReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) IsClosed() bool {
	return h.closed.Load()
}

// BotID returns the application id, falling back to the connected user's id.
func (h *Host) BotID() (uint64, error) {
	if id := h.appID.Load(); id != 0 {
		return id, nil
	}
	state := h.Session.State
	if state == nil {
		return 0, core.ErrClientNotReady
	}
	state.RLock()
	defer state.RUnlock()
	if state.User == nil || state.User.ID == "" {
		return 0, core.ErrClientNotReady
	}
	id, err := strconv.ParseUint(state.User.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bot id %q: %w", state.User.ID, err)
	}
	return id, nil
}

// Stats reads the guild, member and voice counts from the session state.
func (h *Host) Stats() core.StatsSnapshot {
	var stats core.StatsSnapshot

	if state := h.Session.State; state != nil {
		state.RLock()
		stats.GuildCount = len(state.Guilds)
		members := 0
		for _, guild := range state.Guilds {
			members += guild.MemberCount
		}
		state.RUnlock()
		if members > 0 {
			stats.UserCount = core.Some(members)
		}
	}

	h.Session.RLock()
	stats.VoiceConnections = core.Some(len(h.Session.VoiceConnections))
	shards := h.Session.ShardCount
	h.Session.RUnlock()
	if shards > 0 {
		stats.ShardCount = core.Some(shards)
	}
	return stats
}

// Dispatch runs each subscribed handler on its own goroutine.
func (h *Host) Dispatch(event core.Event) {
	h.mu.RLock()
	handlers := append([]*Handler(nil), h.handlers[event.Name]...)
	h.mu.RUnlock()

	if len(handlers) == 0 {
		h.logger.Debug("No handler for event", zap.String("event", event.Name))
		return
	}
	for _, fn := range handlers {
		go h.run(*fn, event)
	}
}

func (h *Host) run(fn Handler, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Event handler panicked",
				zap.String("event", event.Name),
				zap.Any("panic", r))
		}
	}()
	fn(event)
}

var _ core.Host = (*Host)(nil)
