package formatter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/journeyx/internal/models"
)

// Styles is the shared terminal stylesheet.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	OK      lipgloss.Style
	Err     lipgloss.Style
	Warn    lipgloss.Style
	Help    lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		Title:   NewBold(t),
		Heading: NewBold(t),
		OK:      NewBold(s),
		Err:     NewBold(e),
		Warn:    NewStyle(w),
		Help:    NewEm(h),
	}
}

// MissionStyle colors a mission line by its status.
func (p *Palette) MissionStyle(m *models.MissionSummary) lipgloss.Style {
	switch {
	case m.Locked:
		return p.Help
	case m.Status == models.StatusDelivered:
		return p.OK
	case m.Status == models.StatusCompleted:
		return p.Warn
	default:
		return lipgloss.NewStyle()
	}
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
