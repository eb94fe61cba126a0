package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	// BannerStyle marks a degraded dashboard.
	BannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)

	// TabStyle and ActiveTabStyle render the view switcher.
	TabStyle       = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	ActiveTabStyle = lipgloss.NewStyle().Bold(true).Underline(true).Padding(0, 1)

	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// FormatPriceWithColor formats a price with indicator based on comparison with previous price.
func FormatPriceWithColor(current, previous float64) string {
	priceStr := fmt.Sprintf("%.4f", current)

	if previous == 0 {
		return priceStr
	}

	if current > previous {
		return priceStr + " ▲"
	} else if current < previous {
		return priceStr + " ▼"
	}

	return priceStr
}

// FormatPnL renders a signed amount, green when positive.
func FormatPnL(v float64, suffix string) string {
	s := fmt.Sprintf("%+.2f%s", v, suffix)

	switch {
	case v > 0:
		return positiveStyle.Render(s)
	case v < 0:
		return negativeStyle.Render(s)
	default:
		return s
	}
}
