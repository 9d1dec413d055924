package local

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var headingSizes = [...]float64{24, 20, 16, 14, 12, 11}

// RenderPDF lays def out on pages with the PDF core fonts.
func RenderPDF(def *Definition) ([]byte, error) {
	pageSize := def.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}
	pdf := gofpdf.New("P", "mm", pageSize, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if def.Margin != nil {
		pdf.SetMargins(def.Margin.Left, def.Margin.Top, def.Margin.Right)
		pdf.SetAutoPageBreak(true, def.Margin.Bottom)
	} else {
		pdf.SetAutoPageBreak(true, 15)
	}
	if def.Title != "" {
		pdf.SetTitle(def.Title, true)
	}
	if def.Author != "" {
		pdf.SetAuthor(def.Author, true)
	}
	if def.Subject != "" {
		pdf.SetSubject(def.Subject, true)
	}
	pdf.SetCreator("docgen", true)

	base := Font{Family: "Helvetica", Size: 11}
	if def.Font != nil {
		if def.Font.Family != "" {
			base.Family = def.Font.Family
		}
		if def.Font.Size > 0 {
			base.Size = def.Font.Size
		}
		base.Style = def.Font.Style
	}

	r := &pdfRenderer{pdf: pdf, tr: tr, base: base}
	if def.Header != nil {
		hdr := *def.Header
		pdf.SetHeaderFunc(func() { r.band(hdr, 5, "B", 9) })
	}
	if def.Footer != nil {
		ftr := *def.Footer
		pdf.AliasNbPages("{nb}")
		if ftr.Align == "" {
			ftr.Align = "C"
		}
		pdf.SetFooterFunc(func() {
			b := ftr
			b.Text = strings.ReplaceAll(b.Text, "{page}", strconv.Itoa(pdf.PageNo()))
			b.Text = strings.ReplaceAll(b.Text, "{pages}", "{nb}")
			r.band(b, -15, "", 8)
		})
	}

	for i, page := range def.Pages {
		pdf.AddPage()
		r.setFont(nil, "", 0)
		for j, el := range page.Elements {
			if err := r.element(el); err != nil {
				return nil, fmt.Errorf("page %d element %d: %w", i+1, j+1, err)
			}
		}
	}
	if len(def.Pages) == 0 {
		pdf.AddPage()
	}
	if pdf.Err() {
		return nil, fmt.Errorf("rendering pdf: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf  *gofpdf.Fpdf
	tr   func(string) string
	base Font
}

// setFont applies override on top of the base font. An empty style or zero
// size falls back to def* and then the base.
func (r *pdfRenderer) setFont(override *Font, defStyle string, defSize float64) float64 {
	family, style, size := r.base.Family, r.base.Style, r.base.Size
	if defStyle != "" {
		style = defStyle
	}
	if defSize > 0 {
		size = defSize
	}
	if override != nil {
		if override.Family != "" {
			family = override.Family
		}
		if override.Style != "" {
			style = override.Style
		}
		if override.Size > 0 {
			size = override.Size
		}
	}
	r.pdf.SetFont(family, style, size)
	return size
}

func (r *pdfRenderer) contentWidth() float64 {
	pageW, _ := r.pdf.GetPageSize()
	lm, _, rm, _ := r.pdf.GetMargins()
	return pageW - lm - rm
}

func (r *pdfRenderer) element(el Element) error {
	switch el.Type {
	case TypeHeading:
		level := el.Level
		if level < 1 {
			level = 1
		}
		size := r.setFont(el.Font, "B", headingSizes[level-1])
		r.pdf.Ln(size * 0.3)
		r.pdf.MultiCell(r.contentWidth(), size*0.5, r.tr(el.Text), "", align(el.Align), false)
		r.pdf.Ln(size * 0.2)
	case TypeParagraph:
		size := r.setFont(el.Font, "", 0)
		r.pdf.MultiCell(r.contentWidth(), size*0.5, r.tr(el.Text), "", align(el.Align), false)
		r.pdf.Ln(size * 0.3)
	case TypeList:
		size := r.setFont(el.Font, "", 0)
		lm, _, _, _ := r.pdf.GetMargins()
		for i, item := range el.Items {
			r.pdf.SetX(lm + 5)
			r.pdf.MultiCell(r.contentWidth()-10, size*0.5, r.tr(listPrefix(el.Ordered, i)+item), "", "L", false)
			r.pdf.Ln(1)
		}
		r.pdf.Ln(2)
	case TypeTable:
		r.table(el)
	case TypeHR:
		pageW, _ := r.pdf.GetPageSize()
		lm, _, rm, _ := r.pdf.GetMargins()
		r.pdf.Ln(3)
		y := r.pdf.GetY()
		r.pdf.SetDrawColor(180, 180, 180)
		r.pdf.SetLineWidth(0.3)
		r.pdf.Line(lm, y, pageW-rm, y)
		r.pdf.SetDrawColor(0, 0, 0)
		r.pdf.SetLineWidth(0.2)
		r.pdf.Ln(3)
	case TypeSpacer:
		h := el.Height
		if h == 0 {
			h = 10
		}
		r.pdf.Ln(h)
	default:
		return fmt.Errorf("unknown element type %q", el.Type)
	}
	r.setFont(nil, "", 0)
	return nil
}

func (r *pdfRenderer) table(el Element) {
	cols := len(el.Columns)
	for _, row := range el.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}

	widths := make([]float64, cols)
	fixed, auto := 0.0, 0
	for i := range widths {
		if i < len(el.Columns) && el.Columns[i].Width > 0 {
			widths[i] = el.Columns[i].Width
			fixed += widths[i]
		} else {
			auto++
		}
	}
	if auto > 0 {
		share := (r.contentWidth() - fixed) / float64(auto)
		for i := range widths {
			if widths[i] == 0 {
				widths[i] = share
			}
		}
	}
	colAlign := func(i int) string {
		if i < len(el.Columns) {
			return align(el.Columns[i].Align)
		}
		return "L"
	}

	size := r.setFont(el.Font, "", 0)
	rowH := size * 0.7
	r.pdf.Ln(2)
	if len(el.Columns) > 0 {
		r.setFont(el.Font, "B", 0)
		r.pdf.SetFillColor(63, 81, 181)
		r.pdf.SetTextColor(255, 255, 255)
		for i := 0; i < cols; i++ {
			header := ""
			if i < len(el.Columns) {
				header = el.Columns[i].Header
			}
			r.pdf.CellFormat(widths[i], rowH, r.tr(header), "1", 0, colAlign(i), true, 0, "")
		}
		r.pdf.Ln(-1)
		r.pdf.SetTextColor(0, 0, 0)
		r.setFont(el.Font, "", 0)
	}
	for n, row := range el.Rows {
		fill := n%2 == 1
		if fill {
			r.pdf.SetFillColor(245, 245, 245)
		}
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			r.pdf.CellFormat(widths[i], rowH, r.tr(cell), "1", 0, colAlign(i), fill, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(2)
}

func (r *pdfRenderer) band(b Band, y float64, style string, size float64) {
	r.setFont(nil, style, size)
	if y < 0 {
		r.pdf.SetTextColor(128, 128, 128)
	}
	r.pdf.SetY(y)
	r.pdf.CellFormat(r.contentWidth(), 10, r.tr(b.Text), "", 0, align(b.Align), false, 0, "")
	if y > 0 {
		r.pdf.Ln(10)
	}
	r.pdf.SetTextColor(0, 0, 0)
	r.setFont(nil, "", 0)
}

func align(a string) string {
	switch strings.ToUpper(a) {
	case "C", "CENTER":
		return "C"
	case "R", "RIGHT":
		return "R"
	}
	return "L"
}
