package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Default placeholder delimiters.
const (
	DefaultStartDelimiter = "{{"
	DefaultEndDelimiter   = "}}"
)

// Populator merges data into DOCX templates produced by this engine.
type Populator struct {
	policy    *bluemonday.Policy
	partLimit int64
}

// NewPopulator creates a Populator. Values are stripped of markup before
// they are written into the document.
func NewPopulator() *Populator {
	return &Populator{policy: bluemonday.StrictPolicy(), partLimit: DefaultMaxPartBytes}
}

// WithPartLimit bounds the inflated size of each part of a template DOCX.
func (p *Populator) WithPartLimit(n int64) *Populator {
	if n > 0 {
		p.partLimit = n
	}
	return p
}

// Populate replaces placeholders in docx with values from data, which has
// the shape {"config": {...}, "model": {...}}. A payload without "model" is
// used as the model directly.
func (p *Populator) Populate(ctx context.Context, docx []byte, data json.RawMessage) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := ReadDOCXLimit(docx, p.partLimit)
	if err != nil {
		return nil, fmt.Errorf("populate: %w", err)
	}
	payload, err := decodeData(data)
	if err != nil {
		return nil, fmt.Errorf("populate: %w", err)
	}
	out, err := p.Apply(def, payload)
	if err != nil {
		return nil, fmt.Errorf("populate: %w", err)
	}
	return WriteDOCX(out)
}

// Apply returns a copy of def with every placeholder resolved against
// payload.
func (p *Populator) Apply(def *Definition, payload any) (*Definition, error) {
	model, cfg := splitPayload(payload)
	start, end, err := delimiters(cfg)
	if err != nil {
		return nil, err
	}
	m := merger{policy: p.policy, start: start, end: end, root: model}

	out := def.Clone()
	out.Title = m.text(out.Title, nil)
	out.Author = m.text(out.Author, nil)
	out.Subject = m.text(out.Subject, nil)
	if out.Header != nil {
		out.Header.Text = m.text(out.Header.Text, nil)
	}
	if out.Footer != nil {
		out.Footer.Text = m.text(out.Footer.Text, nil)
	}
	for i := range out.Pages {
		for j := range out.Pages[i].Elements {
			if err := m.element(&out.Pages[i].Elements[j]); err != nil {
				return nil, fmt.Errorf("page %d element %d: %w", i+1, j+1, err)
			}
		}
	}
	return out, nil
}

func decodeData(data json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	return v, nil
}

func splitPayload(payload any) (model any, cfg map[string]any) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload, nil
	}
	cfg, _ = obj["config"].(map[string]any)
	if m, ok := obj["model"]; ok {
		return m, cfg
	}
	return payload, cfg
}

// delimiters reads config.delimiter in either {"start","end"} or
// ["start","end"] form.
func delimiters(cfg map[string]any) (string, string, error) {
	raw, ok := cfg["delimiter"]
	if !ok || raw == nil {
		return DefaultStartDelimiter, DefaultEndDelimiter, nil
	}
	var start, end string
	switch d := raw.(type) {
	case map[string]any:
		start, _ = d["start"].(string)
		end, _ = d["end"].(string)
	case []any:
		if len(d) == 2 {
			start, _ = d[0].(string)
			end, _ = d[1].(string)
		}
	}
	if start == "" || end == "" {
		return "", "", fmt.Errorf("config.delimiter must be {\"start\",\"end\"} or a two-string array")
	}
	return start, end, nil
}

type merger struct {
	policy     *bluemonday.Policy
	start, end string
	root       any
}

func (m merger) element(el *Element) error {
	el.Text = m.text(el.Text, nil)
	for i := range el.Columns {
		el.Columns[i].Header = m.text(el.Columns[i].Header, nil)
	}
	if el.Repeat == "" {
		for i := range el.Items {
			el.Items[i] = m.text(el.Items[i], nil)
		}
		for _, row := range el.Rows {
			for i := range row {
				row[i] = m.text(row[i], nil)
			}
		}
		return nil
	}

	v, _ := lookup(m.root, el.Repeat)
	entries, ok := v.([]any)
	if v != nil && !ok {
		return fmt.Errorf("repeat %q is not an array", el.Repeat)
	}
	switch el.Type {
	case TypeList:
		tmpl := el.Items
		el.Items = nil
		for _, entry := range entries {
			for _, item := range tmpl {
				el.Items = append(el.Items, m.text(item, entry))
			}
		}
	case TypeTable:
		tmpl := el.Rows
		el.Rows = nil
		for _, entry := range entries {
			for _, row := range tmpl {
				out := make([]string, len(row))
				for i, cell := range row {
					out[i] = m.text(cell, entry)
				}
				el.Rows = append(el.Rows, out)
			}
		}
	}
	el.Repeat = ""
	return nil
}

// text replaces every placeholder in s. Paths are resolved against scope
// first, then the model root; "." names the scope itself. Unresolved
// placeholders become empty.
func (m merger) text(s string, scope any) string {
	if !strings.Contains(s, m.start) {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, m.start)
		if i < 0 {
			break
		}
		j := strings.Index(s[i+len(m.start):], m.end)
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		path := strings.TrimSpace(s[i+len(m.start) : i+len(m.start)+j])
		b.WriteString(m.value(path, scope))
		s = s[i+len(m.start)+j+len(m.end):]
	}
	b.WriteString(s)
	return b.String()
}

func (m merger) value(path string, scope any) string {
	if path == "." || path == "this" {
		return m.format(scope)
	}
	if scope != nil {
		if v, ok := lookup(scope, path); ok {
			return m.format(v)
		}
	}
	if v, ok := lookup(m.root, path); ok {
		return m.format(v)
	}
	return ""
}

func (m merger) format(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	return html.UnescapeString(m.policy.Sanitize(s))
}

// lookup resolves a dotted path such as "customer.address.city" or
// "items.0.name".
func lookup(v any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
