// Package auth manages user accounts for the desktop service.
//
// Passwords are bcrypt-hashed; users are persisted as JSON under the
// storage directory. Request identity is currently a bare username
// header resolved against this registry, a development placeholder
// rather than an auth design (see middleware.Identity).
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("username and password required")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public returns the user without credential material.
func (u *User) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"username":   u.Username,
		"created_at": u.CreatedAt,
	}
}

// Provider implements account registration and login.
type Provider struct {
	dir   string // empty = in-memory only
	users sync.Map // username -> *User
}

// NewProvider creates an auth provider, loading persisted users when a
// storage directory is configured.
func NewProvider(dir string) *Provider {
	p := &Provider{dir: dir}
	p.load()
	return p
}

// Register creates a new account.
func (p *Provider) Register(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	if _, exists := p.users.Load(username); exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	// LoadOrStore closes the race between the existence check and the
	// insert; the slow bcrypt call stays outside the store.
	if _, loaded := p.users.LoadOrStore(username, user); loaded {
		return nil, ErrUserExists
	}

	if err := p.saveUser(user); err != nil {
		return nil, err
	}

	cp := *user
	return &cp, nil
}

// Authenticate verifies a username/password pair.
func (p *Provider) Authenticate(username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}

	val, ok := p.users.Load(username)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	user := val.(*User)

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	cp := *user
	return &cp, nil
}

// Exists reports whether a username is registered.
func (p *Provider) Exists(username string) bool {
	_, ok := p.users.Load(username)
	return ok
}

func (p *Provider) saveUser(user *User) error {
	if p.dir == "" {
		return nil
	}
	dir := filepath.Join(p.dir, "users")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create users dir: %w", err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	path := filepath.Join(dir, user.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write user: %w", err)
	}
	return nil
}

func (p *Provider) load() {
	if p.dir == "" {
		return
	}
	dir := filepath.Join(p.dir, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var user User
		if err := json.Unmarshal(data, &user); err != nil || user.Username == "" {
			continue
		}
		p.users.Store(user.Username, &user)
	}
}
