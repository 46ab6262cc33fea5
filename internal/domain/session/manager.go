// Package session persists and restores desktop snapshots.
//
// A session is a full capture of one user's desktop state plus chat
// transcript. Restoring replaces the runtime wholesale. Sessions are
// cached in memory and, when a storage directory is configured,
// persisted as gzipped JSON under <dir>/sessions/<user>/.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/shared/id"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Session is one saved desktop snapshot.
type Session struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	State     desktop.State `json:"state"`
}

// Metadata describes a session without its state payload.
type Metadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Windows   int       `json:"windows"`
}

// Manager stores sessions per user.
type Manager struct {
	mu     sync.Mutex
	dir    string                         // empty = in-memory only
	users  map[string]map[string]*Session // Protected by mu
	loaded map[string]bool                // Protected by mu
}

// NewManager creates a session manager. dir may be empty for
// memory-only operation (tests).
func NewManager(dir string) *Manager {
	return &Manager{
		dir:    dir,
		users:  make(map[string]map[string]*Session),
		loaded: make(map[string]bool),
	}
}

// Save captures a desktop state under a new session id.
func (m *Manager) Save(user, name string, st desktop.State) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		name = "Session " + time.Now().Format("2006-01-02 15:04")
	}

	s := &Session{
		ID:        id.NewSessionID().String(),
		Name:      name,
		CreatedAt: time.Now(),
		State:     st,
	}

	m.mu.Lock()
	m.sessionsLocked(user)[s.ID] = s
	m.mu.Unlock()

	if err := m.persist(user, s); err != nil {
		return nil, err
	}

	cp := *s
	return &cp, nil
}

// Get retrieves a session by id.
func (m *Manager) Get(user, sessionID string) (*Session, error) {
	if !validSessionID(sessionID) {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionsLocked(user)[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// validSessionID rejects ids that are not prefixed ULIDs before they
// reach the cache or the filesystem path.
func validSessionID(sessionID string) bool {
	raw, ok := strings.CutPrefix(sessionID, id.SessionPrefix+"_")
	return ok && id.IsValid(raw)
}

// List returns session metadata ordered oldest-first. Session ids are
// ULIDs, so lexical order is creation order.
func (m *Manager) List(user string) []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.sessionsLocked(user)
	out := make([]Metadata, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Metadata{
			ID:        s.ID,
			Name:      s.Name,
			CreatedAt: s.CreatedAt,
			Windows:   len(s.State.Windows),
		})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Delete removes a session from cache and disk.
func (m *Manager) Delete(user, sessionID string) error {
	if !validSessionID(sessionID) {
		return ErrNotFound
	}
	m.mu.Lock()
	sessions := m.sessionsLocked(user)
	if _, ok := sessions[sessionID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(sessions, sessionID)
	m.mu.Unlock()

	if m.dir != "" {
		_ = os.Remove(m.sessionPath(user, sessionID))
	}
	return nil
}

// Restore loads a session and replaces the desktop's runtime with it.
func (m *Manager) Restore(user, sessionID string, d *desktop.Manager) (*Session, error) {
	s, err := m.Get(user, sessionID)
	if err != nil {
		return nil, err
	}
	d.Import(s.State)
	return s, nil
}

// sessionsLocked returns the live session map, loading persisted
// sessions on first access. Caller must hold mu.
func (m *Manager) sessionsLocked(user string) map[string]*Session {
	sessions, ok := m.users[user]
	if !ok {
		sessions = make(map[string]*Session)
		m.users[user] = sessions
	}
	if !m.loaded[user] {
		m.loadUser(user, sessions)
		m.loaded[user] = true
	}
	return sessions
}

func (m *Manager) loadUser(user string, sessions map[string]*Session) {
	if m.dir == "" {
		return
	}
	dir := filepath.Join(m.dir, "sessions", user)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json.gz") {
			continue
		}
		s, err := readSession(filepath.Join(dir, e.Name()))
		if err != nil || s.ID == "" {
			continue
		}
		sessions[s.ID] = s
	}
}

func readSession(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var s Session
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Manager) persist(user string, s *Session) error {
	if m.dir == "" {
		return nil
	}
	dir := filepath.Join(m.dir, "sessions", user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	f, err := os.Create(m.sessionPath(user, s.ID))
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(s); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush session: %w", err)
	}
	return nil
}

func (m *Manager) sessionPath(user, sessionID string) string {
	return filepath.Join(m.dir, "sessions", user, sessionID+".json.gz")
}
