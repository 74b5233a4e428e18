package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The board must stay readable on light and dark backgrounds. Colors are
// adaptive and faint styling is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted = ac("240", "243")

	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")

	colorSurfaceFg = ac("235", "252")
	colorControlBg = ac("252", "235")

	colorAccent   = ac("27", "62")
	colorAccentFg = ac("255", "235")

	// Drop target highlight while a card is held.
	colorDropBg = ac("153", "24")

	colorUrgent  = ac("160", "203")
	colorHigh    = ac("166", "215")
	colorWeather = ac("30", "80")
	colorBusy    = ac("130", "179")

	colorAlertBg = ac("196", "160")
	colorWarnFg  = ac("130", "220")
	colorInfoFg  = ac("28", "114")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

// applyColorProfilePreference sets Lip Gloss's color profile for the board.
//
// termenv.EnvColorProfile respects CLICOLOR/CLICOLOR_FORCE, which can disable
// colors in a full-screen program. Only NO_COLOR is honored here; otherwise
// the terminal's capabilities win.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()

	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && (profile == termenv.Ascii || profile == termenv.ANSI) {
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures background detection.
//
// Priority:
// 1) DISPATCH_TUI_THEME=light|dark|auto
// 2) COLORFGBG heuristic ("15;0" = fg;bg)
func applyThemePreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DISPATCH_TUI_THEME"))) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			lipgloss.SetHasDarkBackground(bg < 7)
		}
	}
}
