package desktop

import (
	"strings"
	"testing"

	"github.com/lumendesk/backend/internal/shared/geo"
)

func testBounds() geo.Rect {
	return geo.Rect{Left: 0, Top: 0, Width: 1920, Height: 1080}
}

func newTestManager() *Manager {
	return NewManager(testBounds(), DefaultIcons())
}

func TestOpenSingleton(t *testing.T) {
	m := newTestManager()

	first := m.Open(AppBrowser)
	second := m.Open(AppBrowser)

	if first.ID != second.ID {
		t.Error("Expected singleton browser to be reused")
	}
	if len(m.List()) != 1 {
		t.Errorf("Expected 1 window, got %d", len(m.List()))
	}
}

func TestOpenDocsMultiInstance(t *testing.T) {
	m := newTestManager()

	a := m.Open(AppDocs)
	b := m.Open(AppDocs)

	if a.ID == b.ID {
		t.Error("Expected separate document windows")
	}
	if len(m.List()) != 2 {
		t.Errorf("Expected 2 windows, got %d", len(m.List()))
	}
}

func TestActivateRaisesZOrder(t *testing.T) {
	m := newTestManager()

	a := m.Open(AppDocs)
	b := m.Open(AppBrowser)

	// b is active and on top
	active, ok := m.Active()
	if !ok || active.ID != b.ID {
		t.Fatal("Expected browser to be active")
	}

	if !m.Activate(a.ID) {
		t.Fatal("Activate failed")
	}
	raised, _ := m.Get(a.ID)
	top, _ := m.Get(b.ID)
	if raised.ZIndex <= top.ZIndex {
		t.Errorf("Expected activated window above previous top (%d <= %d)", raised.ZIndex, top.ZIndex)
	}

	// Re-activating the active window must not bump the counter.
	before, _ := m.Get(a.ID)
	m.Activate(a.ID)
	after, _ := m.Get(a.ID)
	if before.ZIndex != after.ZIndex {
		t.Error("Activating the active window should be a z-order no-op")
	}
}

func TestCloseReleasesAssociationsAndRefocuses(t *testing.T) {
	m := newTestManager()

	docs := m.Open(AppDocs)
	browser := m.Open(AppBrowser)
	m.Update(browser.ID, func(w *Window) {
		w.Browser = &BrowserState{Query: "weather"}
	})

	if !m.Close(browser.ID) {
		t.Fatal("Close failed")
	}
	if _, ok := m.Get(browser.ID); ok {
		t.Error("Closed window should be gone")
	}

	active, ok := m.Active()
	if !ok || active.ID != docs.ID {
		t.Error("Expected remaining window to take focus")
	}

	if m.Close("win_missing") {
		t.Error("Closing unknown window should report false")
	}
}

func TestGeometryClamping(t *testing.T) {
	m := newTestManager()
	w := m.Open(AppDocs)

	m.SetGeometry(w.ID, geo.Rect{Left: 5000, Top: -200, Width: 400, Height: 300})
	got, _ := m.Get(w.ID)

	bounds := m.Bounds()
	if got.Rect.Left+got.Rect.Width > bounds.Width || got.Rect.Top < 0 {
		t.Errorf("Geometry not clamped: %+v", got.Rect)
	}
}

func TestMaximizeRestore(t *testing.T) {
	m := newTestManager()
	w := m.Open(AppDoodle)
	orig, _ := m.Get(w.ID)

	m.ToggleMaximize(w.ID)
	maxed, _ := m.Get(w.ID)
	if !maxed.Maximized || maxed.Rect != m.Bounds() {
		t.Errorf("Expected maximized to desktop bounds, got %+v", maxed.Rect)
	}

	// Geometry changes are refused while maximized.
	if m.SetGeometry(w.ID, geo.Rect{Left: 10, Top: 10, Width: 100, Height: 100}) {
		t.Error("SetGeometry should refuse a maximized window")
	}

	m.ToggleMaximize(w.ID)
	restored, _ := m.Get(w.ID)
	if restored.Maximized || restored.Rect != orig.Rect {
		t.Errorf("Expected restore to %+v, got %+v", orig.Rect, restored.Rect)
	}
}

func TestClipboardSingleSlot(t *testing.T) {
	m := newTestManager()

	if _, ok := m.Clipboard(); ok {
		t.Error("Expected empty clipboard")
	}

	m.SetClipboard(ClipboardItem{Type: "image", Data: "data:image/png;base64,AAAA"})
	m.SetClipboard(ClipboardItem{Type: "image", Data: "data:image/png;base64,BBBB"})

	item, ok := m.Clipboard()
	if !ok {
		t.Fatal("Expected clipboard content")
	}
	if !strings.HasSuffix(item.Data, "BBBB") {
		t.Error("Expected second copy to replace the first")
	}
}

func TestResolveSelectors(t *testing.T) {
	m := newTestManager()
	w := m.Open(AppStudio)

	target, ok := m.Resolve("#" + w.ID)
	if !ok {
		t.Fatal("Expected window selector to resolve")
	}
	if target.Point != w.Rect.Center() {
		t.Errorf("Expected window center %+v, got %+v", w.Rect.Center(), target.Point)
	}

	iconTarget, ok := m.Resolve("#icon-browser")
	if !ok || iconTarget.Icon == nil || iconTarget.Icon.Kind != AppBrowser {
		t.Error("Expected icon selector to resolve to browser icon")
	}

	if _, ok := m.Resolve("#nope"); ok {
		t.Error("Expected unknown selector to fail")
	}
	if _, ok := m.Resolve(""); ok {
		t.Error("Expected empty selector to fail")
	}
}

func TestFindUnboundDocs(t *testing.T) {
	m := newTestManager()

	if _, ok := m.FindUnboundDocs(); ok {
		t.Error("Expected no docs window")
	}

	a := m.Open(AppDocs)
	b := m.Open(AppDocs)
	m.Update(b.ID, func(w *Window) {
		w.Binding = &FileBinding{Type: "documents", Name: "notes.html"}
	})

	found, ok := m.FindUnboundDocs()
	if !ok || found.ID != a.ID {
		t.Error("Expected the unbound docs window")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m := newTestManager()

	docs := m.Open(AppDocs)
	m.Update(docs.ID, func(w *Window) {
		w.Content = "<p>hello</p>"
		w.Binding = &FileBinding{Type: "documents", Name: "hello.html"}
	})
	m.Open(AppBrowser)
	m.SetClipboard(ClipboardItem{Type: "image", Data: "data:image/png;base64,AAAA"})
	m.AppendMessage("user", "draw me a cat")
	m.AppendMessage("assistant", "done")

	st := m.Export()

	restored := newTestManager()
	restored.Import(st)

	if len(restored.List()) != 2 {
		t.Fatalf("Expected 2 windows after import, got %d", len(restored.List()))
	}
	got, ok := restored.Get(docs.ID)
	if !ok {
		t.Fatal("Expected docs window to survive round trip")
	}
	if got.Content != "<p>hello</p>" || got.Binding == nil || got.Binding.Name != "hello.html" {
		t.Error("Docs content/binding lost in round trip")
	}
	if _, ok := restored.Clipboard(); !ok {
		t.Error("Clipboard lost in round trip")
	}
	tr := restored.Transcript()
	if len(tr) != 2 || tr[0].Text != "draw me a cat" {
		t.Error("Transcript not preserved verbatim")
	}
}

func TestImportToSmallerBoundsClampsRestoreGeometry(t *testing.T) {
	big := newTestManager()
	w := big.Open(AppDocs)
	big.SetGeometry(w.ID, geo.Rect{Left: 1200, Top: 540, Width: 720, Height: 540})
	big.ToggleMaximize(w.ID)

	small := NewManager(geo.Rect{Width: 1280, Height: 720}, DefaultIcons())
	small.Import(big.Export())

	maxed, _ := small.Get(w.ID)
	if !maxed.Maximized || maxed.Rect != small.Bounds() {
		t.Fatalf("Expected window maximized to the new bounds, got %+v", maxed.Rect)
	}

	small.ToggleMaximize(w.ID)
	got, _ := small.Get(w.ID)
	b := small.Bounds()
	if got.Rect.Left < b.Left || got.Rect.Top < b.Top ||
		got.Rect.Left+got.Rect.Width > b.Left+b.Width ||
		got.Rect.Top+got.Rect.Height > b.Top+b.Height {
		t.Errorf("Restored geometry escapes desktop bounds: rect=%+v bounds=%+v", got.Rect, b)
	}
}

func TestTryRunRejectsReentry(t *testing.T) {
	m := newTestManager()

	if !m.TryRun() {
		t.Fatal("First claim should succeed")
	}
	if m.TryRun() {
		t.Error("Second claim should be rejected while running")
	}
	m.EndRun()
	if !m.TryRun() {
		t.Error("Claim should succeed after release")
	}
	m.EndRun()
}

func TestDescribeSnapshot(t *testing.T) {
	m := newTestManager()
	w := m.Open(AppDocs)

	text := Describe(m)
	if !strings.Contains(text, "Desktop: 1920x1080") {
		t.Error("Expected desktop dimensions in snapshot")
	}
	if !strings.Contains(text, w.ID) {
		t.Error("Expected window id in snapshot")
	}
	if !strings.Contains(text, "#icon-docs") {
		t.Error("Expected icons in snapshot")
	}
}
