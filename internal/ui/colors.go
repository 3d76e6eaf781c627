package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/duet/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title     lipgloss.Style
	ok        lipgloss.Style
	err       lipgloss.Style
	warn      lipgloss.Style
	help      lipgloss.Style
	human     lipgloss.Style
	automated lipgloss.Style
	panel     lipgloss.Style
}

// NewPalette builds a [Palette] from title, success, error, warning and muted colors.
// Human contributions share the success color; automated ones the title color.
func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:     NewBold(t).MarginBottom(1),
		ok:        NewBold(s),
		err:       NewBold(e),
		warn:      NewStyle(w),
		help:      NewEm(h),
		human:     NewStyle(s),
		automated: NewStyle(t),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t)).
			Padding(0, 1),
	}
}

// Contributor returns the style used to tag entries added by c.
func (p *Palette) Contributor(c models.Contributor) lipgloss.Style {
	if c == models.Human {
		return p.human
	}
	return p.automated
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
