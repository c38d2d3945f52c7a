package supervisor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State of one inbox's channel connection.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Connection is what the supervisor tracks for a started inbox.
type Connection struct {
	InboxID    string    `json:"inboxId"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"startedAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Supervisor is the in-process registry of inbox channel connections. The
// provider-side session lives in the channel service; this registry only
// tracks which inboxes this instance considers live, so operators can see
// and flip connection state per inbox.
type Supervisor struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func New() *Supervisor {
	return &Supervisor{
		connections: make(map[string]*Connection),
	}
}

// Start marks the inbox connection live. Starting an already-started inbox
// refreshes its last-seen time rather than erroring.
func (s *Supervisor) Start(inboxID string) *Connection {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[inboxID]
	if ok && conn.State == StateConnected {
		conn.LastSeenAt = now
		return conn.clone()
	}

	conn = &Connection{
		InboxID:    inboxID,
		State:      StateConnected,
		StartedAt:  now,
		LastSeenAt: now,
	}
	s.connections[inboxID] = conn

	log.Info().Str("inboxId", inboxID).Msg("inbox connection started")
	return conn.clone()
}

// Stop marks the inbox connection down. Returns false when the inbox was
// never started.
func (s *Supervisor) Stop(inboxID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[inboxID]
	if !ok {
		return false
	}
	conn.State = StateDisconnected
	conn.LastSeenAt = time.Now()

	log.Info().Str("inboxId", inboxID).Msg("inbox connection stopped")
	return true
}

// Touch refreshes the last-seen timestamp for a live inbox. Webhook
// deliveries call this; a connected inbox with a stale Touch is a sign the
// provider stopped delivering.
func (s *Supervisor) Touch(inboxID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.connections[inboxID]; ok && conn.State == StateConnected {
		conn.LastSeenAt = time.Now()
	}
}

// Status returns the tracked connection, or a disconnected placeholder for
// unknown inboxes.
func (s *Supervisor) Status(inboxID string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conn, ok := s.connections[inboxID]; ok {
		return conn.clone()
	}
	return &Connection{InboxID: inboxID, State: StateDisconnected}
}

// All returns a snapshot of every tracked connection.
func (s *Supervisor) All() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		out = append(out, *conn)
	}
	return out
}

func (c *Connection) clone() *Connection {
	cp := *c
	return &cp
}
