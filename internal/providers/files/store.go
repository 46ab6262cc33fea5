// Package files stores per-user files in two independent namespaces:
// documents (HTML fragments) and images (data URLs).
//
// Document content is sanitized on save; image content must be a data
// URL whose decoded bytes sniff as an image. Files are cached in memory
// and, when a storage directory is configured, persisted as JSON under
// <dir>/files/<user>/<type>/.
package files

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

const (
	TypeDocuments = "documents"
	TypeImages    = "images"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidType = errors.New("invalid file type")
	ErrInvalidName = errors.New("invalid file name")
	ErrNotAnImage  = errors.New("content is not an image data URL")
)

// File is one stored file. Content is opaque to the store beyond
// save-time validation; files are overwritten in place, never versioned.
type File struct {
	Name     string    `json:"name"`
	Content  string    `json:"content"`
	Modified time.Time `json:"modified"`
}

// Match is one search result.
type Match struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type namespace map[string]*File

type userFiles struct {
	documents namespace
	images    namespace
}

// Store holds all users' files.
type Store struct {
	mu     sync.RWMutex
	dir    string // empty = in-memory only
	policy *bluemonday.Policy
	users  map[string]*userFiles // Protected by mu
}

// NewStore creates a file store. dir may be empty for memory-only
// operation (tests).
func NewStore(dir string) *Store {
	policy := bluemonday.UGCPolicy()
	policy.AllowImages()
	policy.AllowDataURIImages()

	return &Store{
		dir:    dir,
		policy: policy,
		users:  make(map[string]*userFiles),
	}
}

// Save creates or overwrites a file.
func (s *Store) Save(user, ftype, name, content string) (*File, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	switch ftype {
	case TypeDocuments:
		content = s.policy.Sanitize(content)
	case TypeImages:
		if !IsImageDataURL(content) {
			return nil, ErrNotAnImage
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ftype)
	}

	f := &File{Name: name, Content: content, Modified: time.Now()}

	s.mu.Lock()
	ns := s.namespaceLocked(user, ftype)
	ns[name] = f
	s.mu.Unlock()

	if err := s.persist(user, ftype, f); err != nil {
		return nil, err
	}

	cp := *f
	return &cp, nil
}

// Get retrieves a file from one namespace.
func (s *Store) Get(user, ftype, name string) (*File, error) {
	if ftype != TypeDocuments && ftype != TypeImages {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ftype)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaceLocked(user, ftype)
	f, ok := ns[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// Lookup resolves a filename against both namespaces, documents first.
func (s *Store) Lookup(user, name string) (*File, string, error) {
	if f, err := s.Get(user, TypeDocuments, name); err == nil {
		return f, TypeDocuments, nil
	}
	if f, err := s.Get(user, TypeImages, name); err == nil {
		return f, TypeImages, nil
	}
	return nil, "", ErrNotFound
}

// List returns both namespaces sorted by name.
func (s *Store) List(user string) (documents, images []File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	documents = collect(s.namespaceLocked(user, TypeDocuments))
	images = collect(s.namespaceLocked(user, TypeImages))
	return documents, images
}

// Delete removes a file. Deleting a missing file returns ErrNotFound;
// callers treat that as a reportable condition, not a crash.
func (s *Store) Delete(user, ftype, name string) error {
	if ftype != TypeDocuments && ftype != TypeImages {
		return fmt.Errorf("%w: %q", ErrInvalidType, ftype)
	}

	s.mu.Lock()
	ns := s.namespaceLocked(user, ftype)
	if _, ok := ns[name]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(ns, name)
	s.mu.Unlock()

	if s.dir != "" {
		_ = os.Remove(s.filePath(user, ftype, name))
	}
	return nil
}

// Search matches file names in both namespaces against a glob pattern
// (doublestar syntax, case-sensitive).
func (s *Store) Search(user, pattern string) ([]Match, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %q", pattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Match
	for _, f := range collect(s.namespaceLocked(user, TypeDocuments)) {
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			out = append(out, Match{Type: TypeDocuments, Name: f.Name})
		}
	}
	for _, f := range collect(s.namespaceLocked(user, TypeImages)) {
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			out = append(out, Match{Type: TypeImages, Name: f.Name})
		}
	}
	return out, nil
}

// Usage reports the user's stored bytes. With a storage directory the
// on-disk size is authoritative; otherwise in-memory content lengths.
func (s *Store) Usage(user string) (int64, error) {
	if s.dir == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		var total int64
		for _, f := range s.namespaceLocked(user, TypeDocuments) {
			total += int64(len(f.Content))
		}
		for _, f := range s.namespaceLocked(user, TypeImages) {
			total += int64(len(f.Content))
		}
		return total, nil
	}

	root := filepath.Join(s.dir, "files", user)
	if _, err := os.Stat(root); err != nil {
		return 0, nil
	}

	var total int64
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mu.Lock()
		total += info.Size()
		mu.Unlock()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk storage: %w", err)
	}
	return total, nil
}

// IsImageDataURL reports whether content is a base64 data URL whose
// decoded bytes sniff as an image (PNG, JPEG, GIF, WebP, SVG, ...).
func IsImageDataURL(content string) bool {
	if !strings.HasPrefix(content, "data:") {
		return false
	}
	idx := strings.Index(content, ";base64,")
	if idx < 0 {
		return false
	}
	payload := content[idx+len(";base64,"):]
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mimetype.Detect(raw).String(), "image/")
}

// namespaceLocked returns the live namespace map, loading the user's
// persisted files on first access. Caller must hold mu exclusively,
// since first access populates the cache.
func (s *Store) namespaceLocked(user, ftype string) namespace {
	uf, ok := s.users[user]
	if !ok {
		uf = &userFiles{documents: namespace{}, images: namespace{}}
		s.loadUser(user, uf)
		s.users[user] = uf
	}
	if ftype == TypeImages {
		return uf.images
	}
	return uf.documents
}

func (s *Store) loadUser(user string, uf *userFiles) {
	if s.dir == "" {
		return
	}
	for _, ftype := range []string{TypeDocuments, TypeImages} {
		dir := filepath.Join(s.dir, "files", user, ftype)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			var f File
			if err := json.Unmarshal(data, &f); err != nil || f.Name == "" {
				continue
			}
			if ftype == TypeImages {
				uf.images[f.Name] = &f
			} else {
				uf.documents[f.Name] = &f
			}
		}
	}
}

func (s *Store) persist(user, ftype string, f *File) error {
	if s.dir == "" {
		return nil
	}
	dir := filepath.Join(s.dir, "files", user, ftype)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal file: %w", err)
	}
	if err := os.WriteFile(s.filePath(user, ftype, f.Name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *Store) filePath(user, ftype, name string) string {
	return filepath.Join(s.dir, "files", user, ftype, name+".json")
}

func validateName(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}

func collect(ns namespace) []File {
	out := make([]File, 0, len(ns))
	for _, f := range ns {
		out = append(out, *f)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Name > out[j].Name; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
