package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T, config ConnectionConfig) *ConnectionManager {
	t.Helper()
	cm := NewConnectionManager(config)
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)
	t.Cleanup(cancel)
	return cm
}

func receive(t *testing.T, conn *Connection) events.Refresh {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "send queue closed")
		event, err := ParseEvent(data)
		require.NoError(t, err)
		payload, err := ParseEventPayload(event)
		require.NoError(t, err)
		return payload.(events.Refresh)
	case <-time.After(time.Second):
		t.Fatalf("connection %s received nothing", conn.ID)
		return events.Refresh{}
	}
}

func assertNothing(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRegister_MovesConnectionBetweenTeams(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := cm.newConnection(nil, nil)

	cm.Register(Anonymous, conn)
	team, ok := cm.TeamOf(conn)
	require.True(t, ok)
	assert.Equal(t, Anonymous, team)

	cm.Register("alice", conn)
	team, _ = cm.TeamOf(conn)
	assert.Equal(t, "alice", team)

	stats := cm.GetConnectionStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 0, stats.AnonymousConnections)
	assert.Equal(t, map[string]int{"alice": 1}, stats.TeamConnections)
}

func TestGetConnectionStats_OldestConnection(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	assert.Nil(t, cm.GetConnectionStats().OldestConnectedAt)

	early := cm.newConnection(nil, nil)
	late := cm.newConnection(nil, nil)
	early.ConnectedAt = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	late.ConnectedAt = early.ConnectedAt.Add(time.Minute)
	cm.Register("alice", late)
	cm.Register(Anonymous, early)

	oldest := cm.GetConnectionStats().OldestConnectedAt
	require.NotNil(t, oldest)
	assert.True(t, oldest.Equal(early.ConnectedAt))

	cm.Unregister(Anonymous, early)
	oldest = cm.GetConnectionStats().OldestConnectedAt
	require.NotNil(t, oldest)
	assert.True(t, oldest.Equal(late.ConnectedAt))
}

func TestUnregister(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	first := cm.newConnection(nil, nil)
	second := cm.newConnection(nil, nil)
	cm.Register("alice", first)
	cm.Register("alice", second)

	// Wrong team is a no-op.
	cm.Unregister("bob", first)
	assert.Equal(t, 2, cm.GetConnectionStats().TeamConnections["alice"])

	cm.Unregister("alice", first)
	assert.Equal(t, 1, cm.GetConnectionStats().TeamConnections["alice"])
	_, ok := <-first.Send
	assert.False(t, ok, "send queue should be closed")

	// Twice is a no-op.
	cm.Unregister("alice", first)

	cm.Unregister("alice", second)
	stats := cm.GetConnectionStats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.NotContains(t, stats.TeamConnections, "alice")
	assert.Empty(t, cm.teamConnections)

	// A closed connection is never registered again.
	cm.Register("alice", first)
	assert.Equal(t, 0, cm.GetConnectionStats().TotalConnections)
}

func TestNotify_TargetsTeams(t *testing.T) {
	cm := startManager(t, DefaultConnectionConfig())
	aliceTab1 := cm.newConnection(nil, nil)
	aliceTab2 := cm.newConnection(nil, nil)
	bob := cm.newConnection(nil, nil)
	viewer := cm.newConnection(nil, nil)
	cm.Register("alice", aliceTab1)
	cm.Register("alice", aliceTab2)
	cm.Register("bob", bob)
	cm.Register(Anonymous, viewer)

	refresh := events.Refresh{Pages: []string{events.PageGame}, Redirect: events.PageGame}
	cm.Notify(events.ToTeams("alice", "alice", "carol"), refresh)

	assert.Equal(t, refresh, receive(t, aliceTab1))
	assert.Equal(t, refresh, receive(t, aliceTab2))
	assertNothing(t, aliceTab1)
	assertNothing(t, bob)
	assertNothing(t, viewer)

	board := events.Refresh{Pages: []string{events.PageLeaderboard}}
	cm.Notify(events.ToAll(), board)
	for _, conn := range []*Connection{aliceTab1, aliceTab2, bob, viewer} {
		assert.Equal(t, board, receive(t, conn))
	}
}

func TestNotify_AudienceFixedWhenIssued(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	alice := cm.newConnection(nil, nil)
	cm.Register("alice", alice)

	board := events.Refresh{Pages: []string{events.PageLeaderboard}}
	cm.Notify(events.ToAll(), board)

	// bob connects after the refresh was issued but before it is sent.
	bob := cm.newConnection(nil, nil)
	cm.Register("bob", bob)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	assert.Equal(t, board, receive(t, alice))
	assertNothing(t, bob)

	game := events.Refresh{Pages: []string{events.PageGame}}
	cm.Notify(events.ToAll(), game)
	assert.Equal(t, game, receive(t, alice))
	assert.Equal(t, game, receive(t, bob))
}

func TestNotify_SkipsConnectionsClosedBeforeSend(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	alice := cm.newConnection(nil, nil)
	bob := cm.newConnection(nil, nil)
	cm.Register("alice", alice)
	cm.Register("bob", bob)

	refresh := events.Refresh{Pages: []string{events.PageGame}}
	cm.Notify(events.ToTeams("alice", "bob"), refresh)
	cm.Unregister("bob", bob)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	assert.Equal(t, refresh, receive(t, alice))
	_, ok := <-bob.Send
	assert.False(t, ok, "closed connection must not be sent to")
}

func TestNotify_PreservesOrder(t *testing.T) {
	cm := startManager(t, DefaultConnectionConfig())
	conn := cm.newConnection(nil, nil)
	cm.Register("alice", conn)

	first := events.Refresh{Pages: []string{events.PageGame}}
	second := events.Refresh{Pages: []string{events.PageAny}, Redirect: events.PageResults}
	cm.Notify(events.ToTeams("alice"), first)
	cm.Notify(events.ToTeams("alice"), second)

	assert.Equal(t, first, receive(t, conn))
	assert.Equal(t, second, receive(t, conn))
}

func TestNotify_DropsSlowConnection(t *testing.T) {
	config := DefaultConnectionConfig()
	config.SendBufferSize = 1
	cm := startManager(t, config)
	slow := cm.newConnection(nil, nil)
	cm.Register("alice", slow)

	refresh := events.Refresh{Pages: []string{events.PageGame}}
	cm.Notify(events.ToTeams("alice"), refresh)
	cm.Notify(events.ToTeams("alice"), refresh)

	require.Eventually(t, func() bool {
		return cm.GetConnectionStats().TotalConnections == 0
	}, time.Second, 5*time.Millisecond)

	// The buffered message is still readable, then the queue is closed.
	assert.Equal(t, refresh, receive(t, slow))
	_, ok := <-slow.Send
	assert.False(t, ok)
}

func TestStart_ClosesConnectionsOnShutdown(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	conn := cm.newConnection(nil, nil)
	cm.Register("alice", conn)
	cancel()
	<-done

	_, ok := <-conn.Send
	assert.False(t, ok)
	assert.Equal(t, 0, cm.GetConnectionStats().TotalConnections)
}

func TestHandleClientMessage_Identify(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := cm.newConnection(nil, func(token string) (string, error) {
		if token == "good" {
			return "alice", nil
		}
		return "", assert.AnError
	})
	cm.Register(Anonymous, conn)

	conn.handleClientMessage([]byte(`{"type":"identify","token":"bad"}`))
	team, _ := cm.TeamOf(conn)
	assert.Equal(t, Anonymous, team)

	conn.handleClientMessage([]byte(`{"type":"identify","token":"good"}`))
	team, _ = cm.TeamOf(conn)
	assert.Equal(t, "alice", team)

	conn.handleClientMessage([]byte(`not json`))
	conn.handleClientMessage([]byte(`{"type":"identify"}`))
	team, _ = cm.TeamOf(conn)
	assert.Equal(t, Anonymous, team)
}

func TestRelay_DeliversLocally(t *testing.T) {
	cm := startManager(t, DefaultConnectionConfig())
	conn := cm.newConnection(nil, nil)
	cm.Register("bob", conn)

	refresh := events.Refresh{Pages: []string{events.TeamPage("bob")}}
	data, err := encodeRelayMessage(events.ToTeams("bob"), refresh)
	require.NoError(t, err)

	relay := NewRelay(nil, "table.refresh", cm)
	require.NoError(t, relay.deliver(data))
	assert.Equal(t, refresh, receive(t, conn))

	assert.Error(t, relay.deliver([]byte("{")))
}
