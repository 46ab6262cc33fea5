package files

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89, 0x00, 0x00, 0x00,
	0x0A, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
})

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := NewStore("")

	saved, err := s.Save("alice", TypeDocuments, "notes.html", "<p>hello</p>")
	require.NoError(t, err)
	assert.Equal(t, "notes.html", saved.Name)

	got, err := s.Get("alice", TypeDocuments, "notes.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", got.Content)
}

func TestSaveSanitizesDocuments(t *testing.T) {
	s := NewStore("")

	_, err := s.Save("alice", TypeDocuments, "evil.html", `<p>ok</p><script>alert(1)</script>`)
	require.NoError(t, err)

	got, err := s.Get("alice", TypeDocuments, "evil.html")
	require.NoError(t, err)
	assert.NotContains(t, got.Content, "<script>")
	assert.Contains(t, got.Content, "<p>ok</p>")
}

func TestSaveImageValidation(t *testing.T) {
	s := NewStore("")

	_, err := s.Save("alice", TypeImages, "cat.png", pngDataURL)
	require.NoError(t, err)

	_, err = s.Save("alice", TypeImages, "bad.png", "not a data url")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = s.Save("alice", TypeImages, "fake.png", "data:image/png;base64,aGVsbG8=")
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestSaveRejectsBadNamesAndTypes(t *testing.T) {
	s := NewStore("")

	_, err := s.Save("alice", TypeDocuments, "", "x")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Save("alice", TypeDocuments, "../escape", "x")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Save("alice", "videos", "clip.mp4", "x")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestDeleteNotFoundIsIdempotentError(t *testing.T) {
	s := NewStore("")

	err := s.Delete("alice", TypeDocuments, "ghost.html")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save("alice", TypeDocuments, "real.html", "<p>x</p>")
	require.NoError(t, err)
	require.NoError(t, s.Delete("alice", TypeDocuments, "real.html"))

	// Delete then get reports not found, not a crash.
	_, err = s.Get("alice", TypeDocuments, "real.html")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("alice", TypeDocuments, "real.html"), ErrNotFound)
}

func TestLookupPrefersDocuments(t *testing.T) {
	s := NewStore("")

	_, err := s.Save("alice", TypeImages, "shared", pngDataURL)
	require.NoError(t, err)
	_, err = s.Save("alice", TypeDocuments, "shared", "<p>doc</p>")
	require.NoError(t, err)

	_, ftype, err := s.Lookup("alice", "shared")
	require.NoError(t, err)
	assert.Equal(t, TypeDocuments, ftype)

	_, _, err = s.Lookup("alice", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNamespacesAreIndependentPerUser(t *testing.T) {
	s := NewStore("")

	_, err := s.Save("alice", TypeDocuments, "a.html", "<p>a</p>")
	require.NoError(t, err)

	_, err = s.Get("bob", TypeDocuments, "a.html")
	assert.ErrorIs(t, err, ErrNotFound)

	docs, images := s.List("alice")
	assert.Len(t, docs, 1)
	assert.Len(t, images, 0)
}

func TestSearchGlob(t *testing.T) {
	s := NewStore("")

	_, _ = s.Save("alice", TypeDocuments, "report-2026.html", "<p>r</p>")
	_, _ = s.Save("alice", TypeDocuments, "todo.html", "<p>t</p>")
	_, _ = s.Save("alice", TypeImages, "report-cover.png", pngDataURL)

	matches, err := s.Search("alice", "report-*")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	_, err = s.Search("alice", "[")
	assert.Error(t, err)
}

func TestPersistenceAcrossStores(t *testing.T) {
	dir := t.TempDir()

	s1 := NewStore(dir)
	_, err := s1.Save("alice", TypeDocuments, "keep.html", "<p>kept</p>")
	require.NoError(t, err)

	s2 := NewStore(dir)
	got, err := s2.Get("alice", TypeDocuments, "keep.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>kept</p>", got.Content)

	used, err := s2.Usage("alice")
	require.NoError(t, err)
	assert.Greater(t, used, int64(0))
}

func TestUsageInMemory(t *testing.T) {
	s := NewStore("")
	_, _ = s.Save("alice", TypeDocuments, "a.html", "<p>abc</p>")

	used, err := s.Usage("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(len("<p>abc</p>")), used)

	if !errors.Is(s.Delete("alice", TypeDocuments, "nope"), ErrNotFound) {
		t.Error("expected ErrNotFound")
	}
}
