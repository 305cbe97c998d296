// Package ui provides terminal styling for miq CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Ayu theme color palette
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

// Status styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// HeaderStyle for section headers - bold with accent color
var HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

var severityBadges = map[types.Severity]lipgloss.Style{
	types.SeverityLow:      lipgloss.NewStyle().Bold(true).Foreground(ColorPass),
	types.SeverityMedium:   lipgloss.NewStyle().Bold(true).Foreground(ColorWarn),
	types.SeverityHigh:     lipgloss.NewStyle().Bold(true).Foreground(ColorFail),
	types.SeverityCritical: lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(ColorFail),
}

// SeverityBadge renders a severity tier as a colored uppercase badge, or the
// plain name when color is off.
func SeverityBadge(s types.Severity) string {
	name := strings.ToUpper(string(s))
	if !ShouldUseColor() {
		return name
	}
	if style, ok := severityBadges[s]; ok {
		return style.Render(name)
	}
	return name
}

// FindingStyle picks a style by finding weight, mirroring the severity tiers.
func FindingStyle(weight int) lipgloss.Style {
	switch {
	case weight <= 3:
		return PassStyle
	case weight <= 6:
		return WarnStyle
	default:
		return FailStyle
	}
}
