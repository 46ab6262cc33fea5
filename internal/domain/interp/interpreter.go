// Package interp executes validated action sequences against a user's
// desktop runtime.
//
// Execution is strictly ordered and best-effort: a failed action is
// reported as a chat message and the sequence continues. Only a busy
// desktop or a canceled context stops a run.
package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumendesk/backend/internal/docedit"
	"github.com/lumendesk/backend/internal/domain/action"
	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/providers/ai"
	"github.com/lumendesk/backend/internal/providers/files"
	"github.com/lumendesk/backend/internal/shared/geo"
)

// ErrBusy is returned when a sequence is already executing on the
// desktop. Callers reject the new turn; nothing is queued.
var ErrBusy = errors.New("desktop is busy executing a sequence")

const (
	roleAssistant = "assistant"
	roleSystem    = "system"
)

// Status classifies the outcome of one executed action.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Generator is the upstream surface the interpreter calls for image
// generation and grounded search.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Search(ctx context.Context, query string) (*ai.SearchResult, error)
}

// Observer receives step-level progress, used for metrics and the
// websocket stream. Implementations must not block.
type Observer interface {
	Step(index int, act action.Action, status Status)
}

// Config tunes interpreter behavior.
type Config struct {
	// Pace is the delay imposed before each action. Zero disables it.
	Pace time.Duration
	// Animator defaults to Paced.
	Animator Animator
	// Observer is optional.
	Observer Observer
}

// Interpreter executes action sequences.
type Interpreter struct {
	files *files.Store
	gen   Generator
	anim  Animator
	pace  time.Duration
	obs   Observer
}

// New creates an interpreter over the given file store and upstream
// generator.
func New(store *files.Store, gen Generator, cfg Config) *Interpreter {
	anim := cfg.Animator
	if anim == nil {
		anim = Paced{}
	}
	return &Interpreter{
		files: store,
		gen:   gen,
		anim:  anim,
		pace:  cfg.Pace,
		obs:   cfg.Observer,
	}
}

// Execute runs a sequence strictly in order against one user's desktop.
// A second call while a run is in progress returns ErrBusy. Context
// cancellation stops the run between animations; everything already
// executed stays applied.
func (it *Interpreter) Execute(ctx context.Context, user string, m *desktop.Manager, seq action.Sequence) error {
	if !m.TryRun() {
		return ErrBusy
	}
	defer m.EndRun()

	for i, act := range seq {
		if err := sleep(ctx, it.pace); err != nil {
			return err
		}
		status := it.step(ctx, user, m, act)
		if it.obs != nil {
			it.obs.Step(i, act, status)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// step executes one action. Failures never propagate: preconditions
// that do not hold produce a chat message, and a panic in a handler is
// contained the same way.
func (it *Interpreter) step(ctx context.Context, user string, m *desktop.Manager, act action.Action) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			m.AppendMessage(roleSystem, fmt.Sprintf("Action %s failed unexpectedly: %v", act.Kind, r))
			status = StatusFailed
		}
	}()

	switch act.Kind {
	case action.KindSpeak:
		m.AppendMessage(roleAssistant, act.Text)
		return StatusOK
	case action.KindMoveMouse:
		return it.moveMouse(ctx, m, act)
	case action.KindClick:
		return it.click(ctx, m, act)
	case action.KindType:
		return it.typeText(ctx, m, act)
	case action.KindScroll:
		return it.scroll(m, act)
	case action.KindDoodle:
		return it.doodle(ctx, m, act)
	case action.KindDrawWithCursor:
		return it.drawWithCursor(ctx, m, act)
	case action.KindGenerateImage:
		return it.generateImage(ctx, m, act)
	case action.KindFindImage:
		return it.findImage(ctx, m, act)
	case action.KindPlaceImageInDoc:
		return it.placeImageInDoc(ctx, m)
	case action.KindListFiles:
		return it.listFiles(ctx, user, m)
	case action.KindOpenFile:
		return it.openFile(ctx, user, m, act)
	case action.KindSaveActiveFile:
		return it.saveActiveFile(user, m, act)
	case action.KindDeleteFile:
		return it.deleteFile(user, m, act)
	case action.KindDragWindow:
		return it.dragWindow(ctx, m, act)
	}
	// Unreachable for decoded sequences; decoding rejects unknown kinds.
	m.AppendMessage(roleSystem, fmt.Sprintf("Unsupported action kind %q", act.Kind))
	return StatusFailed
}

// travel animates the cursor to a point and commits the new position.
func (it *Interpreter) travel(ctx context.Context, m *desktop.Manager, to geo.Point) {
	_ = it.anim.Travel(ctx, m.Cursor(), to)
	m.MoveCursor(to)
}

// openVisually is the on-demand app-open path. An already-open
// singleton is focused directly with no animation; otherwise the
// cursor animates to the app's icon and clicks it, like a user would.
func (it *Interpreter) openVisually(ctx context.Context, m *desktop.Manager, kind desktop.AppKind) *desktop.Window {
	if kind.Singleton() {
		if w, ok := m.Find(kind); ok {
			m.Activate(w.ID)
			return w
		}
	}
	if target, ok := m.Resolve("#icon-" + string(kind)); ok {
		it.travel(ctx, m, target.Point)
	}
	return m.Open(kind)
}

// Unresolved selectors are skipped silently: the model may reference
// elements a prior step already removed.
func (it *Interpreter) moveMouse(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	target, ok := m.Resolve(act.Selector)
	if !ok {
		return StatusSkipped
	}
	it.travel(ctx, m, target.Point)
	return StatusOK
}

func (it *Interpreter) click(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	target, ok := m.Resolve(act.Selector)
	if !ok {
		return StatusSkipped
	}
	it.travel(ctx, m, target.Point)

	if target.Icon != nil {
		m.Open(target.Icon.Kind)
		return StatusOK
	}
	m.Activate(target.WindowID)
	return StatusOK
}

func (it *Interpreter) typeText(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	w, ok := m.Active()
	if !ok {
		m.AppendMessage(roleSystem, "Nothing to type into: no window is active.")
		return StatusFailed
	}

	switch w.Kind {
	case desktop.AppDocs:
		m.Update(w.ID, func(win *desktop.Window) {
			if act.Text != "" {
				win.Content = docedit.AppendText(win.Content, act.Text)
			}
			if act.Enter {
				win.Content = docedit.AppendLineBreak(win.Content)
			}
		})
		return StatusOK
	case desktop.AppBrowser:
		m.Update(w.ID, func(win *desktop.Window) {
			win.Input += act.Text
		})
		if !act.Enter {
			return StatusOK
		}
		return it.submitSearch(ctx, m, w.ID)
	default:
		m.AppendMessage(roleSystem, fmt.Sprintf("The %s window has no text input.", w.Kind))
		return StatusFailed
	}
}

// submitSearch runs the browser's pending query through the grounded
// search upstream, the same as pressing enter in the address bar.
func (it *Interpreter) submitSearch(ctx context.Context, m *desktop.Manager, windowID string) Status {
	var query string
	m.Update(windowID, func(win *desktop.Window) {
		query = strings.TrimSpace(win.Input)
		win.Input = ""
	})
	if query == "" {
		return StatusOK
	}

	result, err := it.gen.Search(ctx, query)
	if err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Search for %q failed: %v", query, err))
		return StatusFailed
	}

	m.Update(windowID, func(win *desktop.Window) {
		state := &desktop.BrowserState{Query: query, Summary: result.Summary}
		for _, s := range result.Sources {
			state.Sources = append(state.Sources, desktop.Source{Title: s.Title, URL: s.URL})
		}
		win.Browser = state
		win.Title = query
	})
	return StatusOK
}

func (it *Interpreter) scroll(m *desktop.Manager, act action.Action) Status {
	target, ok := m.Resolve(act.Selector)
	if !ok || target.WindowID == "" {
		return StatusSkipped
	}
	m.Update(target.WindowID, func(win *desktop.Window) {
		win.ScrollY += act.Pixels
		if win.ScrollY < 0 {
			win.ScrollY = 0
		}
	})
	return StatusOK
}

// doodle inks strokes into the doodle canvas; the pen animation is
// awaited per stroke.
func (it *Interpreter) doodle(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	w := it.openVisually(ctx, m, desktop.AppDoodle)
	for _, stroke := range act.Strokes {
		_ = it.anim.Trace(ctx, stroke)
		m.MoveCursor(stroke[len(stroke)-1])
		s := stroke
		m.Update(w.ID, func(win *desktop.Window) {
			win.Strokes = append(win.Strokes, s)
		})
	}
	return StatusOK
}

// drawWithCursor animates the pointer along the strokes without
// leaving ink. Same geometric input as doodle, different side effect.
func (it *Interpreter) drawWithCursor(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	for _, stroke := range act.Strokes {
		it.travel(ctx, m, stroke[0])
		_ = it.anim.Trace(ctx, stroke)
		m.MoveCursor(stroke[len(stroke)-1])
	}
	return StatusOK
}

func (it *Interpreter) generateImage(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	w := it.openVisually(ctx, m, desktop.AppStudio)

	url, err := it.gen.GenerateImage(ctx, act.Prompt)
	if err != nil {
		m.Update(w.ID, func(win *desktop.Window) {
			win.InlineError = fmt.Sprintf("Image generation failed: %v", err)
		})
		return StatusFailed
	}

	m.Update(w.ID, func(win *desktop.Window) {
		win.Content = url
		win.InlineError = ""
	})
	m.SetClipboard(desktop.ClipboardItem{Type: "image", Data: url})
	return StatusOK
}

// findImage is the headless variant: only the clipboard changes.
func (it *Interpreter) findImage(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	url, err := it.gen.GenerateImage(ctx, act.Prompt)
	if err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Could not find an image for %q: %v", act.Prompt, err))
		return StatusFailed
	}
	m.SetClipboard(desktop.ClipboardItem{Type: "image", Data: url})
	return StatusOK
}

// placeImageInDoc appends exactly one image reference per invocation.
// The clipboard is not cleared, so repeated placement is allowed.
func (it *Interpreter) placeImageInDoc(ctx context.Context, m *desktop.Manager) Status {
	item, ok := m.Clipboard()
	if !ok {
		m.AppendMessage(roleSystem, "The clipboard is empty; generate or find an image first.")
		return StatusFailed
	}

	w, found := m.Find(desktop.AppDocs)
	if !found {
		w = it.openVisually(ctx, m, desktop.AppDocs)
	} else {
		m.Activate(w.ID)
	}
	m.Update(w.ID, func(win *desktop.Window) {
		win.Content = docedit.AppendImage(win.Content, item.Data)
	})
	return StatusOK
}

func (it *Interpreter) listFiles(ctx context.Context, user string, m *desktop.Manager) Status {
	it.openVisually(ctx, m, desktop.AppExplorer)

	docs, images := it.files.List(user)
	if len(docs) == 0 && len(images) == 0 {
		m.AppendMessage(roleSystem, "No files saved yet.")
		return StatusOK
	}

	var b strings.Builder
	b.WriteString("Files:")
	for _, f := range docs {
		fmt.Fprintf(&b, "\n- %s (document)", f.Name)
		if n := docedit.CountImages(f.Content); n > 0 {
			fmt.Fprintf(&b, " [%d images]", n)
		}
		if p := preview(f.Content); p != "" {
			fmt.Fprintf(&b, ": %s", p)
		}
	}
	for _, f := range images {
		fmt.Fprintf(&b, "\n- %s (image)", f.Name)
	}
	m.AppendMessage(roleSystem, b.String())
	return StatusOK
}

func (it *Interpreter) openFile(ctx context.Context, user string, m *desktop.Manager, act action.Action) Status {
	f, ftype, err := it.files.Lookup(user, act.Filename)
	if err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Could not open %q: file not found.", act.Filename))
		return StatusFailed
	}

	var w *desktop.Window
	if ftype == files.TypeDocuments {
		// Reuse the most recent unbound editor rather than stacking
		// another one; like a singleton, focusing it needs no animation.
		if cand, ok := m.FindUnboundDocs(); ok {
			m.Activate(cand.ID)
			w = cand
		} else {
			w = it.openVisually(ctx, m, desktop.AppDocs)
		}
	} else {
		w = it.openVisually(ctx, m, desktop.AppStudio)
	}
	m.Update(w.ID, func(win *desktop.Window) {
		win.Content = f.Content
		win.Title = f.Name
		win.InlineError = ""
		win.Binding = &desktop.FileBinding{Type: ftype, Name: f.Name}
	})
	return StatusOK
}

func (it *Interpreter) saveActiveFile(user string, m *desktop.Manager, act action.Action) Status {
	w, ok := m.Active()
	if !ok {
		m.AppendMessage(roleSystem, "Nothing to save: no window is active.")
		return StatusFailed
	}

	name := act.Filename
	if name == "" && w.Binding != nil {
		name = w.Binding.Name
	}

	var ftype, content string
	switch w.Kind {
	case desktop.AppDocs:
		ftype, content = files.TypeDocuments, w.Content
		if name == "" {
			name = deriveName(w.Title, ".html")
		}
	case desktop.AppDoodle:
		if len(w.Strokes) == 0 {
			m.AppendMessage(roleSystem, "The doodle canvas is empty.")
			return StatusFailed
		}
		ftype, content = files.TypeImages, strokesToSVG(w.Strokes, m.Bounds())
		if name == "" {
			name = deriveName(w.Title, ".svg")
		}
	case desktop.AppStudio:
		if w.Content == "" {
			m.AppendMessage(roleSystem, "The studio has no image to save.")
			return StatusFailed
		}
		ftype, content = files.TypeImages, w.Content
		if name == "" {
			name = deriveName(w.Title, ".png")
		}
	default:
		m.AppendMessage(roleSystem, fmt.Sprintf("The %s window has nothing to save.", w.Kind))
		return StatusFailed
	}

	if _, err := it.files.Save(user, ftype, name, content); err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Saving %q failed: %v", name, err))
		return StatusFailed
	}

	// Binding is established on first successful save.
	m.Update(w.ID, func(win *desktop.Window) {
		win.Binding = &desktop.FileBinding{Type: ftype, Name: name}
		win.Title = name
	})
	m.AppendMessage(roleSystem, fmt.Sprintf("Saved %q.", name))
	return StatusOK
}

func (it *Interpreter) deleteFile(user string, m *desktop.Manager, act action.Action) Status {
	_, ftype, err := it.files.Lookup(user, act.Filename)
	if err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Could not delete %q: file not found.", act.Filename))
		return StatusFailed
	}
	if err := it.files.Delete(user, ftype, act.Filename); err != nil {
		m.AppendMessage(roleSystem, fmt.Sprintf("Could not delete %q: %v", act.Filename, err))
		return StatusFailed
	}

	// Windows bound to the deleted file keep their content but lose the
	// binding, like an editor holding an unsaved buffer.
	for _, w := range m.List() {
		if w.Binding != nil && w.Binding.Name == act.Filename && w.Binding.Type == ftype {
			m.Update(w.ID, func(win *desktop.Window) {
				win.Binding = nil
			})
		}
	}
	m.AppendMessage(roleSystem, fmt.Sprintf("Deleted %q.", act.Filename))
	return StatusOK
}

func (it *Interpreter) dragWindow(ctx context.Context, m *desktop.Manager, act action.Action) Status {
	target, ok := m.Resolve(act.Selector)
	if !ok || target.WindowID == "" {
		m.AppendMessage(roleSystem, fmt.Sprintf("Cannot drag %q: no such window.", act.Selector))
		return StatusFailed
	}
	w, _ := m.Get(target.WindowID)
	if w.Maximized {
		m.AppendMessage(roleSystem, "Cannot drag a maximized window.")
		return StatusFailed
	}

	dest := geo.Rect{
		Left:   *act.X,
		Top:    *act.Y,
		Width:  w.Rect.Width,
		Height: w.Rect.Height,
	}.ClampTo(m.Bounds())

	// Grab the title bar, then move cursor and window in lock-step.
	it.travel(ctx, m, w.Rect.Center())
	_ = it.anim.Travel(ctx, w.Rect.Center(), dest.Center())
	m.SetGeometry(w.ID, dest)
	m.MoveCursor(dest.Center())
	m.Activate(w.ID)
	return StatusOK
}

// preview returns the first words of a document's visible text for the
// explorer listing.
func preview(fragment string) string {
	text := docedit.PlainText(fragment)
	if r := []rune(text); len(r) > 48 {
		text = strings.TrimSpace(string(r[:48])) + "..."
	}
	return text
}

// deriveName turns a window title into a filename.
func deriveName(title, ext string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "untitled"
	}
	return slug + ext
}
