package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/rs/zerolog/log"
)

// Anonymous is the identity of viewers without a session.
const Anonymous = ""

// TokenResolver maps a session token sent over an open socket to a team name.
type TokenResolver func(token string) (string, error)

// ConnectionManager is the registry of live client connections, keyed by team.
type ConnectionManager struct {
	// Connection pools organized by team name
	teamConnections map[string]map[*Connection]bool
	connTeams       map[*Connection]string
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	identify TokenResolver
	// closed is guarded by Manager.mu; a closed connection is never registered again.
	closed bool

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a marshalled event waiting to be fanned out. Targets is
// the audience expanded when the refresh was issued.
type BroadcastMessage struct {
	Audience events.Audience
	Targets  []*Connection
	Data     []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		teamConnections: make(map[string]map[*Connection]bool),
		connTeams:       make(map[*Connection]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// Start fans out queued notifications until ctx is cancelled, then closes every connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and registers it under team.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, team string, identify TokenResolver) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := cm.newConnection(conn, identify)
	cm.Register(team, connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("team", team).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) newConnection(conn *websocket.Conn, identify TokenResolver) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		identify:    identify,
		ConnectedAt: time.Now(),
	}
}

// Register files conn under team. A connection registered under another team moves.
func (cm *ConnectionManager) Register(team string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.closed {
		return
	}
	if previous, ok := cm.connTeams[conn]; ok {
		if previous == team {
			return
		}
		cm.detachLocked(previous, conn)
	}

	if cm.teamConnections[team] == nil {
		cm.teamConnections[team] = make(map[*Connection]bool)
	}
	cm.teamConnections[team][conn] = true
	cm.connTeams[conn] = team

	log.Debug().
		Str("connection_id", conn.ID).
		Str("team", team).
		Int("team_connections", len(cm.teamConnections[team])).
		Msg("connection registered")
}

// Unregister removes conn from team and closes its send queue. It does nothing if
// conn is not registered under team.
func (cm *ConnectionManager) Unregister(team string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connTeams[conn] != team || !cm.teamConnections[team][conn] {
		return
	}
	cm.detachLocked(team, conn)
	conn.closed = true
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("team", team).
		Msg("connection unregistered")
}

// disconnect unregisters conn from whichever team holds it.
func (cm *ConnectionManager) disconnect(conn *Connection) {
	cm.mu.RLock()
	team, ok := cm.connTeams[conn]
	cm.mu.RUnlock()
	if ok {
		cm.Unregister(team, conn)
	}
}

// detachLocked drops conn from team, removing the team key once it is empty.
func (cm *ConnectionManager) detachLocked(team string, conn *Connection) {
	connections := cm.teamConnections[team]
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.teamConnections, team)
	}
	delete(cm.connTeams, conn)
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for conn := range cm.connTeams {
		conn.closed = true
		close(conn.Send)
	}
	cm.teamConnections = make(map[string]map[*Connection]bool)
	cm.connTeams = make(map[*Connection]string)
}

// Notify queues a refresh for the audience. The audience is expanded to the
// connections registered now; later arrivals do not receive it. It never blocks;
// when the queue is full the refresh is dropped.
func (cm *ConnectionManager) Notify(audience events.Audience, refresh events.Refresh) {
	event, err := NewRefreshEvent(refresh)
	if err != nil {
		log.Error().Err(err).Msg("failed to build refresh event")
		return
	}
	data, err := event.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal refresh event")
		return
	}

	cm.mu.RLock()
	targets := cm.resolveLocked(audience)
	cm.mu.RUnlock()

	select {
	case cm.broadcastCh <- BroadcastMessage{Audience: audience, Targets: targets, Data: data}:
	default:
		log.Warn().
			Bool("all", audience.All).
			Strs("teams", audience.Teams).
			Msg("broadcast channel full, dropping refresh")
	}
}

// handleBroadcast delivers one message to its targets. Sends happen under the
// read lock so a concurrent Unregister cannot close a channel mid-send; targets
// closed since Notify are skipped and connections whose buffer is full are
// dropped afterwards.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	var (
		slow      []*Connection
		delivered int
	)
	for _, conn := range message.Targets {
		if conn.closed {
			continue
		}
		delivered++
		select {
		case conn.Send <- message.Data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.disconnect(conn)
		conn.close()
	}

	log.Debug().
		Bool("all", message.Audience.All).
		Strs("teams", message.Audience.Teams).
		Int("connections", delivered).
		Msg("refresh broadcasted")
}

// resolveLocked expands the audience into distinct connections. Caller holds mu.
func (cm *ConnectionManager) resolveLocked(audience events.Audience) []*Connection {
	var targets []*Connection
	if audience.All {
		for conn := range cm.connTeams {
			targets = append(targets, conn)
		}
		return targets
	}

	seen := make(map[string]bool, len(audience.Teams))
	for _, team := range audience.Teams {
		if seen[team] {
			continue
		}
		seen[team] = true
		for conn := range cm.teamConnections[team] {
			targets = append(targets, conn)
		}
	}
	return targets
}

// ConnectionStats summarises the registry.
type ConnectionStats struct {
	TotalConnections     int            `json:"total_connections"`
	ConnectedTeams       int            `json:"connected_teams"`
	AnonymousConnections int            `json:"anonymous_connections"`
	TeamConnections      map[string]int `json:"team_connections"`
	OldestConnectedAt    *time.Time     `json:"oldest_connected_at,omitempty"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connTeams),
		TeamConnections:  make(map[string]int),
	}
	for team, connections := range cm.teamConnections {
		if team == Anonymous {
			stats.AnonymousConnections = len(connections)
			continue
		}
		stats.ConnectedTeams++
		stats.TeamConnections[team] = len(connections)
	}
	for conn := range cm.connTeams {
		if stats.OldestConnectedAt == nil || conn.ConnectedAt.Before(*stats.OldestConnectedAt) {
			connectedAt := conn.ConnectedAt
			stats.OldestConnectedAt = &connectedAt
		}
	}
	return stats
}

// TeamOf returns the identity conn is registered under.
func (cm *ConnectionManager) TeamOf(conn *Connection) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	team, ok := cm.connTeams[conn]
	return team, ok
}

func (c *Connection) close() {
	if c.Conn != nil {
		c.Conn.Close()
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.disconnect(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client. An identify
// message moves the connection to the team named by its token, or to the
// anonymous identity when the token is empty.
func (c *Connection) handleClientMessage(message []byte) {
	msg, err := ParseClientMessage(message)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case ClientMessageIdentify:
		if c.identify == nil {
			return
		}
		team := Anonymous
		if msg.Token != "" {
			team, err = c.identify(msg.Token)
			if err != nil {
				log.Info().Err(err).Str("connection_id", c.ID).Msg("rejected identify token")
				return
			}
		}
		c.Manager.Register(team, c)
		log.Info().Str("connection_id", c.ID).Str("team", team).Msg("connection identified")
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("received client message")
	}
}
