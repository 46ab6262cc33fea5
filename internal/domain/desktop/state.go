package desktop

import "github.com/lumendesk/backend/internal/shared/geo"

// State is a serializable snapshot of a desktop's runtime, used for
// session persistence. Import fully replaces the runtime with the
// captured state.
type State struct {
	Windows   []Window       `json:"windows"` // ordered bottom-to-top
	ActiveID  string         `json:"active_id,omitempty"`
	Cursor    geo.Point      `json:"cursor"`
	Clipboard *ClipboardItem `json:"clipboard,omitempty"`
	Messages  []ChatMessage  `json:"messages,omitempty"`
}

// Export captures the current runtime state.
func (m *Manager) Export() State {
	windows := m.List()
	st := State{
		Windows: make([]Window, len(windows)),
		Cursor:  m.Cursor(),
	}
	for i, w := range windows {
		st.Windows[i] = *w
	}

	m.mu.RLock()
	st.ActiveID = m.activeID
	if m.clipboard != nil {
		c := *m.clipboard
		st.Clipboard = &c
	}
	st.Messages = append([]ChatMessage(nil), m.messages...)
	m.mu.RUnlock()

	return st
}

// Import replaces the runtime with a previously exported state.
func (m *Manager) Import(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windows = make(map[string]*Window, len(st.Windows))
	m.zCounter = 0
	for i := range st.Windows {
		w := st.Windows[i].clone()
		w.Rect = w.Rect.ClampTo(m.bounds)
		// Saved restore geometry must be clamped too: the importing
		// desktop may be smaller than the one that was captured.
		if w.Restore != nil {
			r := w.Restore.ClampTo(m.bounds)
			w.Restore = &r
		}
		if w.Maximized {
			w.Rect = m.bounds
		}
		m.zCounter++
		w.ZIndex = m.zCounter
		m.windows[w.ID] = w
	}

	m.activeID = ""
	if _, ok := m.windows[st.ActiveID]; ok {
		m.activeID = st.ActiveID
	}
	m.cursor = st.Cursor
	m.clipboard = nil
	if st.Clipboard != nil {
		c := *st.Clipboard
		m.clipboard = &c
	}
	m.messages = append([]ChatMessage(nil), st.Messages...)
}
