// Package action defines the closed vocabulary of desktop actions the
// model is allowed to emit, and the strict decoder that turns a raw
// decision payload into a validated sequence.
//
// The vocabulary is a tagged union: one Kind per action plus optional
// kind-specific fields. Decoding rejects unknown kinds and malformed
// shapes outright rather than guessing.
package action

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// Kind discriminates action variants
type Kind string

const (
	KindSpeak            Kind = "speak"
	KindMoveMouse        Kind = "move_mouse_to_element"
	KindClick            Kind = "click"
	KindType             Kind = "type"
	KindScroll           Kind = "scroll"
	KindDoodle           Kind = "doodle"
	KindDrawWithCursor   Kind = "draw_with_cursor"
	KindGenerateImage    Kind = "generate_image"
	KindFindImage        Kind = "find_image"
	KindPlaceImageInDoc  Kind = "place_image_in_doc"
	KindListFiles        Kind = "list_files"
	KindOpenFile         Kind = "open_file"
	KindSaveActiveFile   Kind = "save_active_file"
	KindDeleteFile       Kind = "delete_file"
	KindDragWindow       Kind = "drag_window"
)

// Kinds lists every valid action kind, in schema order.
func Kinds() []Kind {
	return []Kind{
		KindSpeak, KindMoveMouse, KindClick, KindType, KindScroll,
		KindDoodle, KindDrawWithCursor, KindGenerateImage, KindFindImage,
		KindPlaceImageInDoc, KindListFiles, KindOpenFile,
		KindSaveActiveFile, KindDeleteFile, KindDragWindow,
	}
}

var validKinds = func() map[Kind]bool {
	m := make(map[Kind]bool, len(Kinds()))
	for _, k := range Kinds() {
		m[k] = true
	}
	return m
}()

// Action is one agent-issued command. Only the fields relevant to its
// Kind are set; Validate enforces the per-kind shape.
type Action struct {
	Kind     Kind         `json:"kind"`
	Text     string       `json:"text,omitempty"`
	Selector string       `json:"selector,omitempty"`
	Prompt   string       `json:"prompt,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Enter    bool         `json:"enter,omitempty"`
	Pixels   float64      `json:"pixels,omitempty"`
	X        *float64     `json:"x,omitempty"`
	Y        *float64     `json:"y,omitempty"`
	Strokes  []geo.Stroke `json:"strokes,omitempty"`
}

// Sequence is an ordered list of actions for one chat turn.
// Execution order is authoritative: no reordering, no parallelism.
type Sequence []Action

// Validate checks the per-kind required fields.
func (a Action) Validate() error {
	if !validKinds[a.Kind] {
		return fmt.Errorf("unknown action kind: %q", a.Kind)
	}

	switch a.Kind {
	case KindSpeak:
		if a.Text == "" {
			return fmt.Errorf("speak requires text")
		}
	case KindMoveMouse:
		if a.Selector == "" {
			return fmt.Errorf("move_mouse_to_element requires selector")
		}
	case KindType:
		if a.Text == "" && !a.Enter {
			return fmt.Errorf("type requires text or enter")
		}
	case KindScroll:
		if a.Selector == "" {
			return fmt.Errorf("scroll requires selector")
		}
		if a.Pixels == 0 {
			return fmt.Errorf("scroll requires a non-zero pixel offset")
		}
	case KindDoodle, KindDrawWithCursor:
		if len(a.Strokes) == 0 {
			return fmt.Errorf("%s requires strokes", a.Kind)
		}
		for i, s := range a.Strokes {
			if len(s) < 2 {
				return fmt.Errorf("%s stroke %d needs at least two points", a.Kind, i)
			}
		}
	case KindGenerateImage, KindFindImage:
		if a.Prompt == "" {
			return fmt.Errorf("%s requires prompt", a.Kind)
		}
	case KindOpenFile, KindDeleteFile:
		if a.Filename == "" {
			return fmt.Errorf("%s requires filename", a.Kind)
		}
	case KindDragWindow:
		if a.Selector == "" {
			return fmt.Errorf("drag_window requires selector")
		}
		if a.X == nil || a.Y == nil {
			return fmt.Errorf("drag_window requires target x and y")
		}
	}
	return nil
}

// rawAction mirrors Action but keeps strokes as loose pairs so both
// [[x,y],...] (the model's native shape) and {"x":..,"y":..} decode.
type rawAction struct {
	Kind     Kind          `json:"kind"`
	Text     string        `json:"text"`
	Selector string        `json:"selector"`
	Prompt   string        `json:"prompt"`
	Filename string        `json:"filename"`
	Enter    bool          `json:"enter"`
	Pixels   float64       `json:"pixels"`
	X        *float64      `json:"x"`
	Y        *float64      `json:"y"`
	Strokes  [][][]float64 `json:"strokes"`
}

// DecodeSequence parses and validates a decision payload. The payload
// may be either a bare array of actions or an object with an "actions"
// field. Any unknown kind or malformed action fails the whole decode.
func DecodeSequence(data []byte) (Sequence, error) {
	var raws []rawAction
	if err := sonic.Unmarshal(data, &raws); err != nil {
		var envelope struct {
			Actions []rawAction `json:"actions"`
		}
		if err2 := sonic.Unmarshal(data, &envelope); err2 != nil || envelope.Actions == nil {
			return nil, fmt.Errorf("malformed decision payload: %w", err)
		}
		raws = envelope.Actions
	}

	seq := make(Sequence, 0, len(raws))
	for i, r := range raws {
		a := Action{
			Kind:     r.Kind,
			Text:     r.Text,
			Selector: r.Selector,
			Prompt:   r.Prompt,
			Filename: r.Filename,
			Enter:    r.Enter,
			Pixels:   r.Pixels,
			X:        r.X,
			Y:        r.Y,
		}
		if r.Strokes != nil {
			strokes, err := convertStrokes(r.Strokes)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			a.Strokes = strokes
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		seq = append(seq, a)
	}
	return seq, nil
}

func convertStrokes(raw [][][]float64) ([]geo.Stroke, error) {
	strokes := make([]geo.Stroke, 0, len(raw))
	for i, line := range raw {
		stroke := make(geo.Stroke, 0, len(line))
		for j, pair := range line {
			if len(pair) != 2 {
				return nil, fmt.Errorf("stroke %d point %d: expected [x,y] pair", i, j)
			}
			stroke = append(stroke, geo.Point{X: pair[0], Y: pair[1]})
		}
		strokes = append(strokes, stroke)
	}
	return strokes, nil
}
