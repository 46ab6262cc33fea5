package desktop

import (
	"fmt"
	"strings"
)

// Describe renders the desktop state as the textual block supplied to
// the model with every chat request. It is recomputed per request;
// window layout may have changed between turns.
func Describe(m *Manager) string {
	var b strings.Builder

	bounds := m.Bounds()
	fmt.Fprintf(&b, "Desktop: %.0fx%.0f\n", bounds.Width, bounds.Height)

	icons := m.Icons()
	b.WriteString("Icons:\n")
	for _, ic := range icons {
		fmt.Fprintf(&b, "  #icon-%s %q at (%.0f, %.0f)\n", ic.Kind, ic.Label, ic.Pos.X, ic.Pos.Y)
	}

	windows := m.List()
	if len(windows) == 0 {
		b.WriteString("Windows: none open\n")
	} else {
		fmt.Fprintf(&b, "Windows (%d, bottom to top):\n", len(windows))
		for _, w := range windows {
			fmt.Fprintf(&b, "  #%s [%s] %q", w.ID, w.Kind, w.Title)
			if w.Maximized {
				b.WriteString(" maximized")
			}
			fmt.Fprintf(&b, " pos=(%.0f, %.0f) size=%.0fx%.0f",
				w.Rect.Left, w.Rect.Top, w.Rect.Width, w.Rect.Height)
			if w.Binding != nil {
				fmt.Fprintf(&b, " file=%s/%s", w.Binding.Type, w.Binding.Name)
			}
			b.WriteString("\n")
		}
	}

	cursor := m.Cursor()
	fmt.Fprintf(&b, "Cursor: (%.0f, %.0f)\n", cursor.X, cursor.Y)

	if _, ok := m.Clipboard(); ok {
		b.WriteString("Clipboard: holds an image\n")
	}

	return b.String()
}
