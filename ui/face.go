package ui

import (
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
)

// facePadding is the number of blank cells kept on each side of a row.
const facePadding = 1

// chordWidths returns the usable width, in cells, of each row of a circle
// that is diameter rows tall. A cell is about twice as tall as it is wide, so
// the circle is 2*diameter cells across.
func chordWidths(diameter int) []int {
	widths := make([]int, max(diameter, 0))
	r := float64(diameter) / 2
	for y := range widths {
		dy := float64(y) + 0.5 - r
		half := math.Sqrt(max(0, r*r-dy*dy))
		widths[y] = max(0, int(4*half)-2*facePadding)
	}
	return widths
}

// flow fills rows of the given widths with words. ends[i] is the index of the
// first word not placed in rows 0 through i. Words wider than the widest row
// are truncated.
func flow(words []string, widths []int) (rows []string, ends []int) {
	rows = make([]string, len(widths))
	ends = make([]int, len(widths))
	if len(widths) == 0 {
		return rows, ends
	}
	widest := slices.Max(widths)

	i := 0
	for r, w := range widths {
		var (
			line  strings.Builder
			width int
		)
		for i < len(words) {
			word := words[i]
			if runewidth.StringWidth(word) > widest {
				word = runewidth.Truncate(word, widest, ellipsis)
			}
			need := runewidth.StringWidth(word)
			if width > 0 {
				need++
			}
			if width+need > w {
				break
			}
			if width > 0 {
				line.WriteByte(' ')
			}
			line.WriteString(word)
			width += need
			i++
		}
		rows[r] = line.String()
		ends[r] = i
	}
	return rows, ends
}

// roundView lays text out in a circle, starting at word start. It returns the
// rendered face, the word the next row down starts with and whether any words
// did not fit.
func roundView(text string, diameter, start int) (view string, next int, more bool) {
	words := strings.Fields(text)
	start = min(max(start, 0), len(words))

	rows, ends := flow(words[start:], chordWidths(diameter))

	next = start
	for _, end := range ends {
		if end > 0 {
			next = start + end
			break
		}
	}
	if len(ends) > 0 {
		more = start+ends[len(ends)-1] < len(words)
	}

	total := 2 * diameter
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = lipgloss.PlaceHorizontal(total, lipgloss.Center, row)
	}
	return strings.Join(lines, "\n"), next, more
}

// centerInFace places a single line on the middle row of an empty face.
func centerInFace(s string, diameter int) string {
	total := 2 * diameter
	lines := make([]string, diameter)
	for i := range lines {
		lines[i] = strings.Repeat(" ", total)
	}
	if diameter > 0 {
		lines[diameter/2] = lipgloss.PlaceHorizontal(total, lipgloss.Center, s)
	}
	return strings.Join(lines, "\n")
}
