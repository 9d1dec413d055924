// Package local is an in-process document engine. Templates are DocJSON
// definitions; format A is a DOCX package carrying the definition, format B
// is a PDF rendered with gofpdf.
//
// Example definition:
//
//	{
//	  "title": "Invoice {{invoiceNumber}}",
//	  "pages": [{
//	    "elements": [
//	      {"type": "heading", "text": "{{companyName}}", "level": 1},
//	      {"type": "paragraph", "text": "Bill to {{customerName}}"}
//	    ]
//	  }]
//	}
package local

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Definition is a complete DocJSON document.
type Definition struct {
	Title    string  `json:"title,omitempty"`
	Author   string  `json:"author,omitempty"`
	Subject  string  `json:"subject,omitempty"`
	PageSize string  `json:"pageSize,omitempty"` // A4, Letter, Legal (default: A4)
	Margin   *Margin `json:"margin,omitempty"`
	Font     *Font   `json:"font,omitempty"`
	Header   *Band   `json:"header,omitempty"`
	Footer   *Band   `json:"footer,omitempty"` // text supports {page} and {pages}
	Pages    []Page  `json:"pages"`
}

// Margin is in millimetres.
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Font names one of the PDF core fonts.
type Font struct {
	Family string  `json:"family,omitempty"` // Helvetica, Courier, Times
	Style  string  `json:"style,omitempty"`  // "", B, I, BI
	Size   float64 `json:"size,omitempty"`
}

// Band is a header or footer line repeated on every page.
type Band struct {
	Text  string `json:"text"`
	Align string `json:"align,omitempty"`
}

// Page is one page of elements.
type Page struct {
	Elements []Element `json:"elements"`
}

// Element types.
const (
	TypeHeading   = "heading"
	TypeParagraph = "paragraph"
	TypeList      = "list"
	TypeTable     = "table"
	TypeHR        = "hr"
	TypeSpacer    = "spacer"
)

// Element is a single block on a page. Type selects which fields apply.
type Element struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Level int    `json:"level,omitempty"` // heading 1-6
	Align string `json:"align,omitempty"` // L, C, R
	Font  *Font  `json:"font,omitempty"`

	// List
	Items   []string `json:"items,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`

	// Table
	Columns []Column   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// Repeat names an array in the data. Populating a list or table emits
	// its items or rows once per array entry, resolving placeholders
	// against the entry first.
	Repeat string `json:"repeat,omitempty"`

	Height float64 `json:"height,omitempty"` // spacer, in mm
}

// Column is a table column.
type Column struct {
	Header string  `json:"header"`
	Width  float64 `json:"width,omitempty"` // mm, 0 = share remaining width
	Align  string  `json:"align,omitempty"`
}

// ParseDefinition decodes and validates a DocJSON document. Unknown fields
// are rejected so typos in hand-edited sources surface immediately.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks element types and table shapes.
func (d *Definition) Validate() error {
	for p, page := range d.Pages {
		for i, el := range page.Elements {
			if err := el.validate(); err != nil {
				return fmt.Errorf("page %d element %d: %w", p+1, i+1, err)
			}
		}
	}
	return nil
}

func (e Element) validate() error {
	switch e.Type {
	case TypeHeading:
		if e.Level < 0 || e.Level > 6 {
			return fmt.Errorf("heading level %d out of range 1-6", e.Level)
		}
	case TypeParagraph, TypeHR, TypeSpacer:
	case TypeList:
	case TypeTable:
		for r, row := range e.Rows {
			if len(e.Columns) > 0 && len(row) != len(e.Columns) {
				return fmt.Errorf("table row %d has %d cells, want %d", r+1, len(row), len(e.Columns))
			}
		}
	default:
		return fmt.Errorf("unknown element type %q", e.Type)
	}
	if e.Repeat != "" && e.Type != TypeList && e.Type != TypeTable {
		return fmt.Errorf("repeat is only valid on lists and tables, not %q", e.Type)
	}
	return nil
}

// Marshal encodes the definition as indented JSON.
func (d *Definition) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Clone returns a deep copy.
func (d *Definition) Clone() *Definition {
	out := *d
	if d.Margin != nil {
		m := *d.Margin
		out.Margin = &m
	}
	if d.Font != nil {
		f := *d.Font
		out.Font = &f
	}
	if d.Header != nil {
		h := *d.Header
		out.Header = &h
	}
	if d.Footer != nil {
		f := *d.Footer
		out.Footer = &f
	}
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i].Elements = make([]Element, len(p.Elements))
		for j, el := range p.Elements {
			out.Pages[i].Elements[j] = el.clone()
		}
	}
	return &out
}

func (e Element) clone() Element {
	out := e
	if e.Font != nil {
		f := *e.Font
		out.Font = &f
	}
	out.Items = append([]string(nil), e.Items...)
	out.Columns = append([]Column(nil), e.Columns...)
	if e.Rows != nil {
		out.Rows = make([][]string, len(e.Rows))
		for i, r := range e.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}
