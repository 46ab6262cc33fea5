package desktop

import (
	"time"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// AppKind identifies which application a window hosts
type AppKind string

const (
	AppDocs     AppKind = "docs"
	AppDoodle   AppKind = "doodle"
	AppStudio   AppKind = "studio"
	AppBrowser  AppKind = "browser"
	AppExplorer AppKind = "explorer"
)

// AppKinds lists every valid app kind.
func AppKinds() []AppKind {
	return []AppKind{AppDocs, AppDoodle, AppStudio, AppBrowser, AppExplorer}
}

// Singleton reports whether at most one window of this kind may be open.
// The document editor is the only multi-instance app.
func (k AppKind) Singleton() bool {
	return k != AppDocs
}

// Valid reports whether k is a known app kind.
func (k AppKind) Valid() bool {
	switch k {
	case AppDocs, AppDoodle, AppStudio, AppBrowser, AppExplorer:
		return true
	}
	return false
}

// defaultSize returns the initial window size for an app kind.
func (k AppKind) defaultSize() (w, h float64) {
	switch k {
	case AppDocs:
		return 720, 540
	case AppDoodle:
		return 640, 520
	case AppStudio:
		return 600, 560
	case AppBrowser:
		return 860, 600
	case AppExplorer:
		return 560, 420
	}
	return 600, 400
}

func (k AppKind) defaultTitle() string {
	switch k {
	case AppDocs:
		return "Untitled Document"
	case AppDoodle:
		return "Doodle Pad"
	case AppStudio:
		return "Image Studio"
	case AppBrowser:
		return "Browser"
	case AppExplorer:
		return "File Explorer"
	}
	return string(k)
}

// FileBinding associates a window with a stored file.
type FileBinding struct {
	Type string `json:"type"` // files.TypeDocuments or files.TypeImages
	Name string `json:"name"`
}

// Source is one citation returned by web search.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// BrowserState holds the browser window's search state.
type BrowserState struct {
	Query   string   `json:"query"`
	Sources []Source `json:"sources,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// ClipboardItem is the single-slot clipboard payload.
type ClipboardItem struct {
	Type string `json:"type"` // only "image" is currently produced
	Data string `json:"data"`
}

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Role string    `json:"role"` // "user", "assistant", "system"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Window is one app window on the desktop. Owned exclusively by the
// Manager; callers only ever see copies.
type Window struct {
	ID        string   `json:"id"`
	Kind      AppKind  `json:"kind"`
	Title     string   `json:"title"`
	Rect      geo.Rect `json:"rect"`
	ZIndex    uint64   `json:"z_index"`
	Maximized bool     `json:"maximized"`

	// Geometry to return to when un-maximizing.
	Restore *geo.Rect `json:"restore,omitempty"`

	Binding *FileBinding  `json:"binding,omitempty"`
	Browser *BrowserState `json:"browser,omitempty"`

	// Content is the docs HTML fragment or the studio image data URL.
	Content     string       `json:"content,omitempty"`
	InlineError string       `json:"inline_error,omitempty"`
	Strokes     []geo.Stroke `json:"strokes,omitempty"` // doodle ink
	ScrollY     float64      `json:"scroll_y,omitempty"`
	Input       string       `json:"input,omitempty"` // browser search input
}

// clone returns a deep copy safe to hand outside the manager's lock.
func (w *Window) clone() *Window {
	cp := *w
	if w.Restore != nil {
		r := *w.Restore
		cp.Restore = &r
	}
	if w.Binding != nil {
		b := *w.Binding
		cp.Binding = &b
	}
	if w.Browser != nil {
		b := *w.Browser
		b.Sources = append([]Source(nil), w.Browser.Sources...)
		cp.Browser = &b
	}
	if w.Strokes != nil {
		cp.Strokes = make([]geo.Stroke, len(w.Strokes))
		for i, s := range w.Strokes {
			cp.Strokes[i] = append(geo.Stroke(nil), s...)
		}
	}
	return &cp
}
