package kanban

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection a session writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one admitted board client. Writes are serialised so a reply and
// a broadcast never interleave on the same connection.
type Session struct {
	id           string
	userID       *uint
	conn         Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func (s *Session) ID() string {
	return s.id
}

// UserID is the authenticated user behind the session, or nil when the
// client connected anonymously.
func (s *Session) UserID() *uint {
	return s.userID
}

// Send writes v as a JSON text message to this session only.
func (s *Session) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.write(data)
}

func (s *Session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Registry is the set of sessions currently connected to this process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	writeTimeout time.Duration
	metrics      *Metrics
}

type RegistryOption func(*Registry)

// WithWriteTimeout bounds every write to a session. Zero means no deadline.
func WithWriteTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.writeTimeout = d
	}
}

func WithRegistryMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{sessions: make(map[string]*Session)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Admit adds an already upgraded connection to the active set. userID may
// be nil.
func (r *Registry) Admit(conn Conn, userID *uint) *Session {
	s := &Session{
		id:           uuid.NewString(),
		userID:       userID,
		conn:         conn,
		writeTimeout: r.writeTimeout,
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.metrics.setSessions(n)
	r.mu.Unlock()

	zap.L().Info("Board session admitted", zap.String("sessionID", s.id), zap.Int("sessions", n))
	return s
}

// Evict removes s and closes its connection. Evicting a session that is no
// longer registered does nothing.
func (r *Registry) Evict(s *Session) {
	if s == nil {
		return
	}

	// the gauge is written under the lock so it never lags the map
	r.mu.Lock()
	current, ok := r.sessions[s.id]
	if ok && current == s {
		delete(r.sessions, s.id)
		r.metrics.setSessions(len(r.sessions))
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok || current != s {
		return
	}

	_ = s.conn.Close()
	zap.L().Info("Board session evicted", zap.String("sessionID", s.id), zap.Int("sessions", n))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast serialises msg once and delivers it to every admitted session.
func (r *Registry) Broadcast(_ context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	r.BroadcastRaw(data)
	return nil
}

// BroadcastRaw delivers an encoded message to every admitted session and
// returns how many received it. A session whose write fails is evicted; the
// remaining sessions still receive the message.
func (r *Registry) BroadcastRaw(data []byte) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	var failed []*Session
	for _, s := range targets {
		if err := s.write(data); err != nil {
			zap.L().Warn("Broadcast delivery failed", zap.String("sessionID", s.id), zap.Error(err))
			r.metrics.broadcastFailure()
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		r.Evict(s)
	}
	return len(targets) - len(failed)
}

// CloseAll evicts every session, closing their connections.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		r.Evict(s)
	}
}
