package domain

import "time"

const (
	ThemeSettingKey = "theme"
	ThemeAuto       = "auto"
)

type ThemeOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Seasonal bool   `json:"seasonal"`
}

var Themes = []ThemeOption{
	{Value: "auto", Label: "🎨 Automatique (selon la saison)"},
	{Value: "rose", Label: "🌺 Rose classique"},
	{Value: "noel", Label: "🎄 Noël", Seasonal: true},
	{Value: "printemps", Label: "🌸 Printemps", Seasonal: true},
	{Value: "ete", Label: "☀️ Été", Seasonal: true},
	{Value: "automne", Label: "🍂 Automne", Seasonal: true},
	{Value: "halloween", Label: "🎃 Halloween", Seasonal: true},
	{Value: "valentin", Label: "💝 Saint-Valentin", Seasonal: true},
	{Value: "hiver", Label: "❄️ Hiver", Seasonal: true},
}

func ValidTheme(theme string) bool {
	for _, t := range Themes {
		if t.Value == theme {
			return true
		}
	}
	return false
}

// SeasonalTheme maps a calendar date to the theme shown when the setting is
// "auto". Saint-Valentin is never selected automatically.
func SeasonalTheme(t time.Time) string {
	month, day := t.Month(), t.Day()
	switch {
	case (month == time.October && day >= 15) || (month == time.November && day == 1):
		return "halloween"
	case month == time.December || (month == time.January && day <= 6):
		return "noel"
	case month == time.January || month == time.February || (month == time.March && day <= 19):
		return "hiver"
	case month == time.March || month == time.April || month == time.May || (month == time.June && day <= 20):
		return "printemps"
	case month == time.June || month == time.July || month == time.August || (month == time.September && day <= 22):
		return "ete"
	case month == time.September || month == time.October || month == time.November:
		return "automne"
	default:
		return "printemps"
	}
}

// Resolve returns the concrete theme for a stored setting at time t.
func Resolve(setting string, t time.Time) string {
	if setting == "" || setting == ThemeAuto || !ValidTheme(setting) {
		return SeasonalTheme(t)
	}
	return setting
}
