package discordhost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMaster3558/toppy/internal/core"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	host, err := New("test-token", nil)
	require.NoError(t, err)
	return host
}

func TestBotIDRequiresReadyState(t *testing.T) {
	host := newTestHost(t)

	_, err := host.BotID()
	require.ErrorIs(t, err, core.ErrClientNotReady)

	host.Session.State.User = &discordgo.User{ID: "264811613708746752"}
	id, err := host.BotID()
	require.NoError(t, err)
	assert.Equal(t, uint64(264811613708746752), id)
}

func TestBotIDPrefersApplicationID(t *testing.T) {
	host := newTestHost(t)
	host.Session.State.User = &discordgo.User{ID: "1"}

	host.onEvent(host.Session, &discordgo.Event{
		Type:    "READY",
		RawData: []byte(`{"user":{"id":"1"},"application":{"id":"264811613708746752","flags":0}}`),
	})

	id, err := host.BotID()
	require.NoError(t, err)
	assert.Equal(t, uint64(264811613708746752), id)
}

func TestBotIDIgnoresOtherEvents(t *testing.T) {
	host := newTestHost(t)
	host.Session.State.User = &discordgo.User{ID: "7"}

	host.onEvent(host.Session, &discordgo.Event{
		Type:    "GUILD_CREATE",
		RawData: []byte(`{"application":{"id":"99"}}`),
	})
	host.onEvent(host.Session, &discordgo.Event{Type: "READY", RawData: []byte(`{"user":{"id":"7"}}`)})

	id, err := host.BotID()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestSetApplicationIDRejectsGarbage(t *testing.T) {
	host := newTestHost(t)
	require.Error(t, host.SetApplicationID("not-a-snowflake"))

	_, err := host.BotID()
	require.ErrorIs(t, err, core.ErrClientNotReady)
}

func TestStatsFromState(t *testing.T) {
	host := newTestHost(t)
	require.NoError(t, host.Session.State.GuildAdd(&discordgo.Guild{ID: "1", MemberCount: 10}))
	require.NoError(t, host.Session.State.GuildAdd(&discordgo.Guild{ID: "2", MemberCount: 5}))
	host.Session.ShardCount = 2

	stats := host.Stats()
	assert.Equal(t, 2, stats.GuildCount)
	assert.Equal(t, 15, stats.UserCount.OrElse(0))
	assert.Equal(t, 2, stats.ShardCount.OrElse(0))
	assert.Equal(t, 0, stats.VoiceConnections.OrElse(-1))
}

func TestStatsWithoutShardingLeavesShardCountUnset(t *testing.T) {
	host := newTestHost(t)
	host.Session.ShardCount = 0
	stats := host.Stats()
	assert.False(t, stats.ShardCount.IsSet())
	assert.False(t, stats.UserCount.IsSet())
}

func TestWaitUntilReady(t *testing.T) {
	host := newTestHost(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, host.WaitUntilReady(ctx), context.DeadlineExceeded)

	ready := &discordgo.Ready{}
	ready.User = &discordgo.User{ID: "1", Username: "toppy"}
	host.onReady(host.Session, ready)
	host.onReady(host.Session, ready)

	require.NoError(t, host.WaitUntilReady(context.Background()))
}

func TestDispatchAndUnsubscribe(t *testing.T) {
	host := newTestHost(t)

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 4)
	unsubscribe := host.Handle("topgg_vote", func(event core.Event) {
		mu.Lock()
		got = append(got, event.Name)
		mu.Unlock()
		received <- struct{}{}
	})
	host.Handle("topgg_vote", func(core.Event) { panic("listener bug") })

	host.Dispatch(core.Event{Name: "topgg_vote", Site: core.SiteTopGG})
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	unsubscribe()
	host.Dispatch(core.Event{Name: "topgg_vote", Site: core.SiteTopGG})
	host.Dispatch(core.Event{Name: "dbl_vote", Site: core.SiteDiscordBotList})

	select {
	case <-received:
		t.Fatal("unsubscribed handler was called")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"topgg_vote"}, got)
}

type recordingAttacher struct {
	name   string
	log    *[]string
	detach error
}

func (a recordingAttacher) Attach(context.Context, core.Host) error {
	*a.log = append(*a.log, "attach "+a.name)
	return nil
}

func (a recordingAttacher) Detach(context.Context) error {
	*a.log = append(*a.log, "detach "+a.name)
	return a.detach
}

func TestCloseDetachesInReverseOrderOnce(t *testing.T) {
	host := newTestHost(t)
	var log []string
	host.AddAttacher(recordingAttacher{name: "a", log: &log})
	host.AddAttacher(recordingAttacher{name: "b", log: &log, detach: errors.New("b failed")})

	err := host.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b failed")
	assert.True(t, host.IsClosed())
	assert.Equal(t, []string{"detach b", "detach a"}, log)

	require.NoError(t, host.Close(context.Background()))
	assert.Len(t, log, 2)
}
