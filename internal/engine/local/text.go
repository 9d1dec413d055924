package local

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderText draws def as plain text wrapped to width columns.
func RenderText(def *Definition, width int) string {
	if width < 20 {
		width = 20
	}
	var blocks []string
	wrap := func(s, a string) string {
		st := lipgloss.NewStyle().Width(width)
		switch align(a) {
		case "C":
			st = st.Align(lipgloss.Center)
		case "R":
			st = st.Align(lipgloss.Right)
		}
		return st.Render(s)
	}

	if def.Header != nil && def.Header.Text != "" {
		blocks = append(blocks, wrap(def.Header.Text, def.Header.Align))
	}
	if def.Title != "" {
		blocks = append(blocks, wrap(strings.ToUpper(def.Title), "C"))
	}
	for p, page := range def.Pages {
		if p > 0 {
			blocks = append(blocks, strings.Repeat("┄", width))
		}
		for _, el := range page.Elements {
			switch el.Type {
			case TypeHeading:
				text := wrap(el.Text, el.Align)
				if el.Level <= 2 {
					text += "\n" + strings.Repeat("═", min(width, lipgloss.Width(text)))
				}
				blocks = append(blocks, text)
			case TypeParagraph:
				blocks = append(blocks, wrap(el.Text, el.Align))
			case TypeList:
				var items []string
				for i, item := range el.Items {
					items = append(items, lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(listPrefix(el.Ordered, i)+item))
				}
				blocks = append(blocks, strings.Join(items, "\n"))
			case TypeTable:
				blocks = append(blocks, textTable(el, width))
			case TypeHR:
				blocks = append(blocks, strings.Repeat("─", width))
			case TypeSpacer:
				blocks = append(blocks, "")
			}
		}
	}
	if def.Footer != nil && def.Footer.Text != "" {
		blocks = append(blocks, wrap(def.Footer.Text, "C"))
	}
	return strings.Join(blocks, "\n\n")
}

func textTable(el Element, width int) string {
	t := table.New().Border(lipgloss.NormalBorder()).Width(width)
	if len(el.Columns) > 0 {
		headers := make([]string, len(el.Columns))
		for i, c := range el.Columns {
			headers[i] = c.Header
		}
		t = t.Headers(headers...)
	}
	t = t.Rows(el.Rows...)
	return t.String()
}

// PlainText returns the document's text content without layout, one block
// per line.
func PlainText(def *Definition) string {
	var lines []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, s)
		}
	}
	add(def.Title)
	for _, page := range def.Pages {
		for _, el := range page.Elements {
			add(el.Text)
			for i, item := range el.Items {
				add(listPrefix(el.Ordered, i) + item)
			}
			if len(el.Columns) > 0 {
				headers := make([]string, len(el.Columns))
				for i, c := range el.Columns {
					headers[i] = c.Header
				}
				add(strings.Join(headers, " | "))
			}
			for _, row := range el.Rows {
				add(strings.Join(row, " | "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
