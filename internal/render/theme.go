package render

import (
	"log/slog"
	"strings"

	"github.com/muesli/termenv"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

type Theme int

const (
	ThemeAuto Theme = iota
	ThemeLight
	ThemeDark
)

func (t Theme) String() string {
	switch t {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "auto"
	}
}

func ThemeFromString(raw string) Theme {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ThemeDark.String():
		return ThemeDark
	case ThemeLight.String():
		return ThemeLight
	default:
		return ThemeAuto
	}
}

type palette struct {
	name        string
	chroma      string
	diffAdd     string
	diffDel     string
	diffHeader  string
	description string
	message     string
}

var (
	lightPalette = palette{
		name:        "light",
		chroma:      "github",
		diffAdd:     "#dff5de",
		diffDel:     "#f9d6d5",
		diffHeader:  "#e4e4e4",
		description: "#6e7781",
		message:     "#9a6700",
	}
	darkPalette = palette{
		name:        "dark",
		chroma:      "github-dark",
		diffAdd:     "#1f3d2b",
		diffDel:     "#3d1f29",
		diffHeader:  "#2f2f2f",
		description: "#8b949e",
		message:     "#d29922",
	}
	detectDarkMode = darkmode.IsDarkMode
)

// paletteForProfile skips detection when nothing will be colored.
func paletteForProfile(t Theme, profile termenv.Profile) palette {
	if profile == termenv.Ascii && t == ThemeAuto {
		return lightPalette
	}
	return paletteFor(t)
}

func paletteFor(t Theme) palette {
	switch t {
	case ThemeDark:
		return darkPalette
	case ThemeLight:
		return lightPalette
	default:
		if detectDarkMode != nil {
			dark, err := detectDarkMode()
			if err != nil {
				slog.Debug("detect dark-mode", slog.Any("error", err))
			} else if dark {
				return darkPalette
			}
		}
		return lightPalette
	}
}
