package desktop

import (
	"strings"
	"sync"
	"time"

	"github.com/lumendesk/backend/internal/shared/geo"
	"github.com/lumendesk/backend/internal/shared/id"
)

// Manager owns the runtime state of one user's desktop: open windows,
// z-order, cursor position, the single-slot clipboard, and the chat
// transcript. All mutation goes through the manager under its lock;
// callers only ever receive copies of windows.
type Manager struct {
	mu        sync.RWMutex
	bounds    geo.Rect
	icons     []Icon
	windows   map[string]*Window // Protected by mu
	zCounter  uint64             // Protected by mu
	activeID  string             // Protected by mu
	cursor    geo.Point          // Protected by mu
	clipboard *ClipboardItem     // Protected by mu
	messages  []ChatMessage      // Protected by mu
	testing   bool               // Protected by mu

	// runMu serializes sequence execution; a second chat turn while one
	// is running is rejected, not queued.
	runMu sync.Mutex
}

// NewManager creates a desktop with the given bounds and icon layout.
func NewManager(bounds geo.Rect, icons []Icon) *Manager {
	return &Manager{
		bounds:  bounds,
		icons:   icons,
		windows: make(map[string]*Window),
		cursor:  bounds.Center(),
	}
}

// Bounds returns the desktop rectangle.
func (m *Manager) Bounds() geo.Rect {
	return m.bounds
}

// Icons returns the icon layout.
func (m *Manager) Icons() []Icon {
	out := make([]Icon, len(m.icons))
	copy(out, m.icons)
	return out
}

// TryRun attempts to claim the desktop for one sequence execution.
// Returns false if a sequence is already running.
func (m *Manager) TryRun() bool {
	return m.runMu.TryLock()
}

// EndRun releases the claim taken by TryRun.
func (m *Manager) EndRun() {
	m.runMu.Unlock()
}

// SetTesting toggles testing mode, which disables the chat input path.
func (m *Manager) SetTesting(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testing = enabled
}

// Testing reports whether testing mode is enabled.
func (m *Manager) Testing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.testing
}

// Cursor returns the current cursor position.
func (m *Manager) Cursor() geo.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// MoveCursor places the cursor, clamped to the desktop.
func (m *Manager) MoveCursor(p geo.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bounds.Contains(p) {
		if p.X < m.bounds.Left {
			p.X = m.bounds.Left
		}
		if p.Y < m.bounds.Top {
			p.Y = m.bounds.Top
		}
		if p.X > m.bounds.Left+m.bounds.Width {
			p.X = m.bounds.Left + m.bounds.Width
		}
		if p.Y > m.bounds.Top+m.bounds.Height {
			p.Y = m.bounds.Top + m.bounds.Height
		}
	}
	m.cursor = p
}

// Clipboard returns a copy of the clipboard slot, if populated.
func (m *Manager) Clipboard() (ClipboardItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.clipboard == nil {
		return ClipboardItem{}, false
	}
	return *m.clipboard, true
}

// SetClipboard replaces the clipboard slot.
func (m *Manager) SetClipboard(item ClipboardItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clipboard = &item
}

// AppendMessage adds a chat transcript entry.
func (m *Manager) AppendMessage(role, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, ChatMessage{Role: role, Text: text, At: time.Now()})
}

// Transcript returns a copy of the chat transcript.
func (m *Manager) Transcript() []ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Open creates a new window of the given kind and activates it. For
// singleton kinds the existing window is activated instead.
func (m *Manager) Open(kind AppKind) *Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind.Singleton() {
		if w := m.findByKind(kind); w != nil {
			m.activate(w)
			return w.clone()
		}
	}
	return m.open(kind).clone()
}

// Find returns the singleton window of a kind, if open. For docs it
// returns the topmost instance.
func (m *Manager) Find(kind AppKind) (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w := m.findByKind(kind); w != nil {
		return w.clone(), true
	}
	return nil, false
}

// FindUnboundDocs returns the most recently created document window
// without a file binding, by z-order.
func (m *Manager) FindUnboundDocs() (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Window
	for _, w := range m.windows {
		if w.Kind != AppDocs || w.Binding != nil {
			continue
		}
		if best == nil || w.ZIndex > best.ZIndex {
			best = w
		}
	}
	if best == nil {
		return nil, false
	}
	return best.clone(), true
}

// Get retrieves a window by ID.
func (m *Manager) Get(windowID string) (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[windowID]
	if !ok {
		return nil, false
	}
	return w.clone(), true
}

// List returns all open windows ordered bottom-to-top by z-order.
func (m *Manager) List() []*Window {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w.clone())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ZIndex > out[j].ZIndex; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Active returns the active window, if any.
func (m *Manager) Active() (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.windows[m.activeID]; ok {
		return w.clone(), true
	}
	return nil, false
}

// Activate raises a window to the top of the z-order. No-op (still
// true) if the window is already active.
func (m *Manager) Activate(windowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok {
		return false
	}
	m.activate(w)
	return true
}

// Close destroys a window, releasing its file and browser associations.
func (m *Manager) Close(windowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok {
		return false
	}
	w.Binding = nil
	w.Browser = nil
	delete(m.windows, windowID)

	if m.activeID == windowID {
		m.activeID = ""
		// Promote the topmost remaining window.
		var top *Window
		for _, cand := range m.windows {
			if top == nil || cand.ZIndex > top.ZIndex {
				top = cand
			}
		}
		if top != nil {
			m.activate(top)
		}
	}
	return true
}

// SetGeometry moves/resizes a window, clamped to desktop bounds.
// Refused while the window is maximized.
func (m *Manager) SetGeometry(windowID string, rect geo.Rect) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok || w.Maximized {
		return false
	}
	w.Rect = rect.ClampTo(m.bounds)
	return true
}

// ToggleMaximize maximizes a window to the desktop bounds, or restores
// the geometry saved when it was maximized.
func (m *Manager) ToggleMaximize(windowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok {
		return false
	}
	if w.Maximized {
		if w.Restore != nil {
			w.Rect = w.Restore.ClampTo(m.bounds)
			w.Restore = nil
		}
		w.Maximized = false
	} else {
		saved := w.Rect
		w.Restore = &saved
		w.Rect = m.bounds
		w.Maximized = true
	}
	m.activate(w)
	return true
}

// Update applies fn to a window under the manager's lock. Intended for
// content-level fields (Content, Strokes, Binding, Browser, Input,
// ScrollY, Title, InlineError); geometry goes through SetGeometry so
// clamping cannot be bypassed.
func (m *Manager) Update(windowID string, fn func(*Window)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok {
		return false
	}
	fn(w)
	return true
}

// Resolve maps a selector string to a desktop target. Supported forms:
// "#<window-id>" for windows and "#icon-<kind>" for desktop icons.
// The returned point is the element's center.
func (m *Manager) Resolve(selector string) (Target, bool) {
	sel := strings.TrimPrefix(selector, "#")
	if sel == "" {
		return Target{}, false
	}

	if kind := AppKind(strings.TrimPrefix(sel, "icon-")); strings.HasPrefix(sel, "icon-") && kind.Valid() {
		for _, ic := range m.icons {
			if ic.Kind == kind {
				return Target{Icon: &ic, Point: ic.Pos}, true
			}
		}
		return Target{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.windows[sel]; ok {
		return Target{WindowID: w.ID, Point: w.Rect.Center()}, true
	}
	return Target{}, false
}

// Target is a resolved selector: either a desktop icon or a window.
type Target struct {
	WindowID string
	Icon     *Icon
	Point    geo.Point
}

// --- internal helpers, caller must hold mu ---

func (m *Manager) findByKind(kind AppKind) *Window {
	var best *Window
	for _, w := range m.windows {
		if w.Kind != kind {
			continue
		}
		if best == nil || w.ZIndex > best.ZIndex {
			best = w
		}
	}
	return best
}

func (m *Manager) open(kind AppKind) *Window {
	width, height := kind.defaultSize()

	// Cascade new windows from the top-left so they never stack exactly.
	n := float64(len(m.windows))
	rect := geo.Rect{
		Left:   m.bounds.Left + 120 + 32*n,
		Top:    m.bounds.Top + 80 + 32*n,
		Width:  width,
		Height: height,
	}.ClampTo(m.bounds)

	w := &Window{
		ID:    string(id.NewWindowID()),
		Kind:  kind,
		Title: kind.defaultTitle(),
		Rect:  rect,
	}
	m.windows[w.ID] = w
	m.activate(w)
	return w
}

func (m *Manager) activate(w *Window) {
	if m.activeID == w.ID {
		return
	}
	m.zCounter++
	w.ZIndex = m.zCounter
	m.activeID = w.ID
}
