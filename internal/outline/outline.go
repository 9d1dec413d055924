// Package outline converts arbitrary JSON values into an indented,
// human-readable outline used to preview template data.
//
// The transformation is pure: the same input always yields the same lines,
// every JSON value is accepted, and nothing outside the returned slice is
// touched.
package outline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// Indent is the per-level indentation.
	Indent = "    "
	// LeafMarker prefixes scalar, null and empty-array entries.
	LeafMarker = "•"
	// BranchMarker prefixes object and array entries with children.
	BranchMarker = "▼"
)

// NoModelMessage is returned by Readable when the data has no model object.
const NoModelMessage = "No model data found"

// Line is one entry of the outline.
type Line struct {
	Depth  int
	Branch bool
	Label  string // Title Case key or "[i]" index; empty for a top-level scalar
	Value  string // rendered scalar; empty for branches
}

// Text returns the line without indentation or marker, e.g.
// "Invoice Number: INV-001".
func (l Line) Text() string {
	if l.Branch {
		return l.Label + ":"
	}
	if l.Label == "" {
		return l.Value
	}
	return l.Label + ": " + l.Value
}

// String renders the line with indentation and marker.
func (l Line) String() string {
	marker := LeafMarker
	if l.Branch {
		marker = BranchMarker
	}
	return strings.Repeat(Indent, l.Depth) + marker + " " + l.Text()
}

// Lines returns the outline of v. v may be any value produced by
// encoding/json (map[string]any, []any, string, float64, json.Number, bool,
// nil) or by Decode. Plain maps are walked in sorted key order; Object
// values keep their document order.
func Lines(v any) []Line {
	var out []Line
	switch val := v.(type) {
	case Object:
		out = walkObject(val, 0, out)
	case map[string]any:
		out = walkObject(fromMap(val), 0, out)
	case []any:
		out = walkArray(val, 0, out)
	default:
		out = append(out, Line{Value: scalar(val)})
	}
	return out
}

// Render joins the outline of v into a single newline-separated string.
func Render(v any) string {
	lines := Lines(v)
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// Readable renders only the "model" member of template data, ignoring its
// "config" member. It returns NoModelMessage when there is no model.
func Readable(data any) string {
	model, ok := member(data, "model")
	if !ok || model == nil {
		return NoModelMessage
	}
	return Render(model)
}

// LeafCount returns the number of leaf lines in the outline of v.
func LeafCount(v any) int {
	n := 0
	for _, l := range Lines(v) {
		if !l.Branch {
			n++
		}
	}
	return n
}

func walkObject(obj Object, depth int, out []Line) []Line {
	for _, m := range obj {
		label := TitleCase(m.Key)
		switch val := m.Value.(type) {
		case []any:
			if len(val) == 0 {
				out = append(out, Line{Depth: depth, Label: label, Value: "[]"})
				continue
			}
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkArray(val, depth+1, out)
		case Object:
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkObject(val, depth+1, out)
		case map[string]any:
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkObject(fromMap(val), depth+1, out)
		default:
			out = append(out, Line{Depth: depth, Label: label, Value: scalar(val)})
		}
	}
	return out
}

func walkArray(arr []any, depth int, out []Line) []Line {
	for i, item := range arr {
		label := "[" + strconv.Itoa(i) + "]"
		switch val := item.(type) {
		case []any:
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkArray(val, depth+1, out)
		case Object:
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkObject(val, depth+1, out)
		case map[string]any:
			out = append(out, Line{Depth: depth, Branch: true, Label: label})
			out = walkObject(fromMap(val), depth+1, out)
		default:
			out = append(out, Line{Depth: depth, Label: label, Value: scalar(val)})
		}
	}
	return out
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return fmt.Sprint(v)
}

func fromMap(m map[string]any) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(Object, len(keys))
	for i, k := range keys {
		obj[i] = Member{Key: k, Value: m[k]}
	}
	return obj
}

func member(data any, key string) (any, bool) {
	switch val := data.(type) {
	case Object:
		return val.Get(key)
	case map[string]any:
		v, ok := val[key]
		return v, ok
	}
	return nil, false
}
