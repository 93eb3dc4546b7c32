package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/yyyoichi/warptps"
)

var (
	colorCyan  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorRed   = lipgloss.Color("167")
	colorWhite = lipgloss.Color("255")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleValue  = lipgloss.NewStyle().Foreground(colorWhite)
	styleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCell        = lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
	styleHeader      = styleCell.Foreground(colorGray).Bold(true)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconArrow   = "→"
)

// printer writes styled status lines. Commands print through it so tests
// can capture the output.
type printer struct {
	w io.Writer
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func (p printer) failure(format string, args ...any) {
	fmt.Fprintln(p.w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func (p printer) file(path string) {
	fmt.Fprintln(p.w, "  "+styleDim.Render(iconArrow)+" "+styleValue.Render(path))
}

func (p printer) keyValue(key, value string) {
	fmt.Fprintln(p.w, styleKey.Render(key)+" "+styleValue.Render(value))
}

func (p printer) title(s string) {
	fmt.Fprintln(p.w, styleTitle.Render(s))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// landmarkTable prints one row per landmark: index, source and destination.
func (p printer) landmarkTable(ls []warptps.Landmark) {
	header := []string{"#", "src x", "src y", "dst x", "dst y"}
	line := ""
	for _, h := range header {
		line += styleHeader.Render(h)
	}
	fmt.Fprintln(p.w, line)
	for i, l := range ls {
		fmt.Fprintln(p.w, lipgloss.JoinHorizontal(lipgloss.Top,
			styleCell.Render(styleNumber.Render(strconv.Itoa(i))),
			styleCell.Render(formatCoord(l.Source.X())),
			styleCell.Render(formatCoord(l.Source.Y())),
			styleCell.Render(formatCoord(l.Destination.X())),
			styleCell.Render(formatCoord(l.Destination.Y())),
		))
	}
}
