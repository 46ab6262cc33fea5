package interp

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// strokesToSVG serializes doodle ink as an SVG data URL so saved
// doodles live in the image namespace like any other picture.
func strokesToSVG(strokes []geo.Stroke, viewport geo.Rect) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s">`,
		fmtCoord(viewport.Width), fmtCoord(viewport.Height))
	for _, stroke := range strokes {
		b.WriteString(`<polyline fill="none" stroke="black" stroke-width="3" points="`)
		for i, p := range stroke {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(fmtCoord(p.X))
			b.WriteByte(',')
			b.WriteString(fmtCoord(p.Y))
		}
		b.WriteString(`"/>`)
	}
	b.WriteString(`</svg>`)

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(b.String()))
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
