package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/shared/geo"
)

func testDesktop() *desktop.Manager {
	return desktop.NewManager(geo.Rect{Width: 1920, Height: 1080}, desktop.DefaultIcons())
}

func populatedDesktop(t *testing.T) *desktop.Manager {
	t.Helper()
	d := testDesktop()
	w := d.Open(desktop.AppDocs)
	d.Update(w.ID, func(win *desktop.Window) {
		win.Content = "<p>draft</p>"
		win.Binding = &desktop.FileBinding{Type: "documents", Name: "draft.html"}
	})
	d.Open(desktop.AppBrowser)
	d.AppendMessage("user", "hello")
	d.AppendMessage("assistant", "hi")
	return d
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	m := NewManager("")
	d := populatedDesktop(t)

	saved, err := m.Save("alice", "work", d.Export())
	require.NoError(t, err)
	assert.Contains(t, saved.ID, "sess_")

	fresh := testDesktop()
	restored, err := m.Restore("alice", saved.ID, fresh)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, restored.ID)

	require.Len(t, fresh.List(), 2)
	docs, ok := fresh.Find(desktop.AppDocs)
	require.True(t, ok)
	assert.Equal(t, "<p>draft</p>", docs.Content)
	require.NotNil(t, docs.Binding)
	assert.Equal(t, "draft.html", docs.Binding.Name)

	tr := fresh.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, "hello", tr[0].Text)
}

func TestSaveDefaultsName(t *testing.T) {
	m := NewManager("")

	s, err := m.Save("alice", "  ", testDesktop().Export())
	require.NoError(t, err)
	assert.NotEmpty(t, s.Name)
}

func TestListOrderedByCreation(t *testing.T) {
	m := NewManager("")
	d := testDesktop()

	first, err := m.Save("alice", "first", d.Export())
	require.NoError(t, err)
	second, err := m.Save("alice", "second", d.Export())
	require.NoError(t, err)

	metas := m.List("alice")
	require.Len(t, metas, 2)
	assert.Equal(t, first.ID, metas[0].ID)
	assert.Equal(t, second.ID, metas[1].ID)

	assert.Empty(t, m.List("bob"))
}

func TestDelete(t *testing.T) {
	m := NewManager("")
	s, err := m.Save("alice", "temp", testDesktop().Export())
	require.NoError(t, err)

	require.NoError(t, m.Delete("alice", s.ID))
	assert.ErrorIs(t, m.Delete("alice", s.ID), ErrNotFound)

	_, err = m.Get("alice", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMalformedIDsRejected(t *testing.T) {
	m := NewManager("")
	_, err := m.Save("alice", "work", testDesktop().Export())
	require.NoError(t, err)

	for _, bad := range []string{"", "unknown", "sess_unknown", "sess_../../etc/passwd", "win_01HZXW3V8K9QJ4R5T6Y7Z8A9B0"} {
		_, err := m.Get("alice", bad)
		assert.ErrorIs(t, err, ErrNotFound, "Get(%q)", bad)
		assert.ErrorIs(t, m.Delete("alice", bad), ErrNotFound, "Delete(%q)", bad)
	}
}

func TestPersistenceAcrossManagers(t *testing.T) {
	dir := t.TempDir()

	m1 := NewManager(dir)
	d := populatedDesktop(t)
	saved, err := m1.Save("alice", "work", d.Export())
	require.NoError(t, err)

	m2 := NewManager(dir)
	got, err := m2.Get("alice", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "work", got.Name)
	assert.Len(t, got.State.Windows, 2)

	require.NoError(t, m2.Delete("alice", saved.ID))
	m3 := NewManager(dir)
	_, err = m3.Get("alice", saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsIsolatedPerUser(t *testing.T) {
	m := NewManager("")
	s, err := m.Save("alice", "mine", testDesktop().Export())
	require.NoError(t, err)

	_, err = m.Get("bob", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
