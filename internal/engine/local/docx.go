package local

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Package part names.
const (
	partContentTypes = "[Content_Types].xml"
	partRels         = "_rels/.rels"
	partDocument     = "word/document.xml"
	partCore         = "docProps/core.xml"
	partDefinition   = "docgen/definition.json"

	relDefinition = "https://docgen.dev/relationships/definition"
)

var zipSignature = []byte("PK\x03\x04")

var (
	// ErrNotDOCX is returned when imported bytes are not an OOXML package.
	ErrNotDOCX = errors.New("not a DOCX package")
	// ErrPartTooLarge is returned when a package part inflates past the
	// part limit.
	ErrPartTooLarge = errors.New("DOCX part too large")
)

// DefaultMaxPartBytes bounds the inflated size of a single package part.
const DefaultMaxPartBytes int64 = 64 << 20

// PartLimitFactor relates the part limit to an upload cap: a part may
// inflate to this many times the largest accepted upload.
const PartLimitFactor = 4

// IsDOCX reports whether data starts with a zip local file header.
func IsDOCX(data []byte) bool {
	return bytes.HasPrefix(data, zipSignature)
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="json" ContentType="application/json"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
<Relationship Id="rId3" Type="` + relDefinition + `" Target="docgen/definition.json"/>
</Relationships>`

// WriteDOCX packages def as a WordprocessingML document. The definition is
// embedded as a custom part so ReadDOCX restores it exactly.
func WriteDOCX(def *Definition) ([]byte, error) {
	src, err := def.Marshal()
	if err != nil {
		return nil, err
	}
	body, err := documentXML(def)
	if err != nil {
		return nil, err
	}
	core, err := coreXML(def)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data []byte
	}{
		{partContentTypes, []byte(contentTypesXML)},
		{partRels, []byte(relsXML)},
		{partDocument, body},
		{partCore, core},
		{partDefinition, src},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing package: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadDOCX restores a definition from a DOCX package. Packages written by
// WriteDOCX round-trip; any other document is reduced to its headings and
// paragraphs.
func ReadDOCX(data []byte) (*Definition, error) {
	return ReadDOCXLimit(data, DefaultMaxPartBytes)
}

// ReadDOCXLimit is ReadDOCX with parts limited to maxPart inflated bytes.
func ReadDOCXLimit(data []byte, maxPart int64) (*Definition, error) {
	if maxPart <= 0 {
		maxPart = DefaultMaxPartBytes
	}
	if !IsDOCX(data) {
		return nil, ErrNotDOCX
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDOCX, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	if f, ok := files[partDefinition]; ok {
		src, err := readPart(f, maxPart)
		if err != nil {
			return nil, err
		}
		return ParseDefinition(src)
	}
	f, ok := files[partDocument]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotDOCX, partDocument)
	}
	body, err := readPart(f, maxPart)
	if err != nil {
		return nil, err
	}
	return extractDefinition(body)
}

func readPart(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s inflates to %d bytes", ErrPartTooLarge, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrPartTooLarge, f.Name, limit)
	}
	return data, nil
}

// WordprocessingML subset used for the main document part.

const nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	NS      string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Blocks []any
}

func (b wBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, blk := range b.Blocks {
		if err := e.Encode(blk); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

type wParagraph struct {
	XMLName xml.Name `xml:"w:p"`
	Props   *wPProps `xml:"w:pPr,omitempty"`
	Runs    []wRun   `xml:"w:r"`
}

type wPProps struct {
	Style *wVal `xml:"w:pStyle,omitempty"`
	Jc    *wVal `xml:"w:jc,omitempty"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wRun struct {
	Break *struct{} `xml:"w:br,omitempty"`
	Text  *wText    `xml:"w:t,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wTable struct {
	XMLName xml.Name `xml:"w:tbl"`
	Rows    []wRow   `xml:"w:tr"`
}

type wRow struct {
	Cells []wCell `xml:"w:tc"`
}

type wCell struct {
	Paragraphs []wParagraph `xml:"w:p"`
}

func textParagraph(style, align, text string) wParagraph {
	p := wParagraph{}
	if style != "" || align != "" {
		p.Props = &wPProps{}
		if style != "" {
			p.Props.Style = &wVal{Val: style}
		}
		if jc := justification(align); jc != "" {
			p.Props.Jc = &wVal{Val: jc}
		}
	}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.Runs = append(p.Runs, wRun{Break: &struct{}{}})
		}
		p.Runs = append(p.Runs, wRun{Text: &wText{Space: "preserve", Value: line}})
	}
	return p
}

func justification(align string) string {
	switch strings.ToUpper(align) {
	case "C":
		return "center"
	case "R":
		return "right"
	}
	return ""
}

func documentXML(def *Definition) ([]byte, error) {
	doc := wDocument{NS: nsW}
	add := func(b any) { doc.Body.Blocks = append(doc.Body.Blocks, b) }

	if def.Title != "" {
		add(textParagraph("Title", "", def.Title))
	}
	for _, page := range def.Pages {
		for _, el := range page.Elements {
			switch el.Type {
			case TypeHeading:
				level := el.Level
				if level < 1 {
					level = 1
				}
				add(textParagraph("Heading"+strconv.Itoa(level), el.Align, el.Text))
			case TypeParagraph:
				add(textParagraph("", el.Align, el.Text))
			case TypeList:
				for i, item := range el.Items {
					add(textParagraph("ListParagraph", "", listPrefix(el.Ordered, i)+item))
				}
			case TypeTable:
				add(tableXML(el))
			case TypeHR, TypeSpacer:
				add(wParagraph{})
			}
		}
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func tableXML(el Element) wTable {
	var t wTable
	if len(el.Columns) > 0 {
		var hdr wRow
		for _, c := range el.Columns {
			hdr.Cells = append(hdr.Cells, wCell{Paragraphs: []wParagraph{textParagraph("", c.Align, c.Header)}})
		}
		t.Rows = append(t.Rows, hdr)
	}
	for _, row := range el.Rows {
		var r wRow
		for i, cell := range row {
			align := ""
			if i < len(el.Columns) {
				align = el.Columns[i].Align
			}
			r.Cells = append(r.Cells, wCell{Paragraphs: []wParagraph{textParagraph("", align, cell)}})
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func listPrefix(ordered bool, i int) string {
	if ordered {
		return strconv.Itoa(i+1) + ". "
	}
	return "• "
}

type coreProps struct {
	XMLName xml.Name `xml:"cp:coreProperties"`
	CP      string   `xml:"xmlns:cp,attr"`
	DC      string   `xml:"xmlns:dc,attr"`
	Title   string   `xml:"dc:title,omitempty"`
	Creator string   `xml:"dc:creator,omitempty"`
	Subject string   `xml:"dc:subject,omitempty"`
}

func coreXML(def *Definition) ([]byte, error) {
	out, err := xml.Marshal(coreProps{
		CP:      "http://schemas.openxmlformats.org/package/2006/metadata/core-properties",
		DC:      "http://purl.org/dc/elements/1.1/",
		Title:   def.Title,
		Creator: def.Author,
		Subject: def.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding core properties: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// extractDefinition walks a foreign document.xml and keeps the text of each
// paragraph, mapping HeadingN and Title styles to headings.
func extractDefinition(body []byte) (*Definition, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	def := &Definition{Pages: []Page{{}}}
	var (
		inPara bool
		inText bool
		style  string
		text   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", partDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsW {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara, style = true, ""
				text.Reset()
			case "pStyle":
				style = attr(t, "val")
			case "t":
				inText = true
			case "br", "tab":
				if inPara {
					text.WriteByte(' ')
				}
			}
		case xml.EndElement:
			if t.Name.Space != nsW {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				if s := strings.TrimSpace(text.String()); s != "" {
					def.Pages[0].Elements = append(def.Pages[0].Elements, paragraphElement(style, s))
				}
			}
		case xml.CharData:
			if inPara && inText {
				text.Write(t)
			}
		}
	}
	return def, nil
}

func paragraphElement(style, text string) Element {
	if style == "Title" {
		return Element{Type: TypeHeading, Level: 1, Text: text}
	}
	if n, ok := strings.CutPrefix(style, "Heading"); ok {
		if level, err := strconv.Atoi(n); err == nil && level >= 1 && level <= 6 {
			return Element{Type: TypeHeading, Level: level, Text: text}
		}
	}
	return Element{Type: TypeParagraph, Text: text}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
