// Package report renders run plans and summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// Printer writes aligned, optionally coloured text to w.
type Printer struct {
	w       io.Writer
	noColor bool
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NoColor disables colour codes, for files and tests.
func (p *Printer) NoColor() *Printer {
	p.noColor = true
	return p
}

func (p *Printer) paint(c color.Color, s string) string {
	if p.noColor {
		return s
	}
	return c.Sprint(s)
}

// Header prints a framed title.
func (p *Printer) Header(format string, args ...any) {
	title := fmt.Sprintf(format, args...)
	line := strings.Repeat("=", runewidth.StringWidth(title)+4)
	fmt.Fprintln(p.w, line)
	fmt.Fprintf(p.w, "  %s\n", p.paint(color.Bold, title))
	fmt.Fprintln(p.w, line)
}

// Section prints a section title with an underline.
func (p *Printer) Section(title string) {
	fmt.Fprintf(p.w, "\n[%s]\n", p.paint(color.Cyan, title))
	fmt.Fprintln(p.w, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// Line prints one indented line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, "  "+format+"\n", args...)
}

// KV prints key/value pairs with the values aligned.
func (p *Printer) KV(pairs ...[2]string) {
	width := 0
	for _, kv := range pairs {
		width = max(width, runewidth.StringWidth(kv[0]))
	}
	for _, kv := range pairs {
		fmt.Fprintf(p.w, "  %s  %s\n", pad(kv[0]+":", width+1), kv[1])
	}
}

// Table prints rows under headers, every column padded to its widest cell.
// Cells may carry colour codes; widths ignore them.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visualWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visualWidth(cell))
			}
		}
	}

	p.row(headers, widths)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	p.row(rule, widths)
	for _, row := range rows {
		p.row(row, widths)
	}
}

func (p *Printer) row(cells []string, widths []int) {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i == len(widths)-1 {
			parts[i] = cell
		} else {
			parts[i] = pad(cell, widths[i])
		}
	}
	fmt.Fprintln(p.w, strings.TrimRight("  "+strings.Join(parts, "  "), " "))
}

// SideBySide prints two blocks of lines next to each other, separated by at
// least gap spaces.
func (p *Printer) SideBySide(left, right []string, gap int) {
	leftWidth := 0
	for _, line := range left {
		leftWidth = max(leftWidth, visualWidth(line))
	}

	for i := 0; i < max(len(left), len(right)); i++ {
		var l, r string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		if r == "" {
			fmt.Fprintln(p.w, strings.TrimRight(l, " "))
			continue
		}
		fmt.Fprintln(p.w, pad(l, leftWidth+gap)+r)
	}
}

// Status colours an outcome word.
func (p *Printer) Status(s string) string {
	switch s {
	case "completed", "ok", "passed", "copied":
		return p.paint(color.Green, s)
	case "failed", "error":
		return p.paint(color.Red, s)
	case "timeout", "excluded", "empty", "warning":
		return p.paint(color.Yellow, s)
	default:
		return p.paint(color.Gray, s)
	}
}

// visualWidth is the terminal width of s with colour codes removed.
func visualWidth(s string) int {
	return runewidth.StringWidth(color.ClearCode(s))
}

func pad(s string, width int) string {
	if n := width - visualWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
