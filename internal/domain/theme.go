package domain

// Theme holds the labels a room's session view is rendered with.
type Theme struct {
	Name          string
	Rotation      string
	Declaration   string
	DeclarerLabel string
	Icon          string
	Idle          string
}

var themes = map[string]Theme{
	"mahjong": {
		Name:          "mahjong",
		Rotation:      "Hanchan",
		Declaration:   "Riichi",
		DeclarerLabel: "Last Riichi Declaration:",
		Icon:          "🀄",
		Idle:          "Playing Mahjong.",
	},
	"generic": {
		Name:          "generic",
		Rotation:      "Ambient",
		Declaration:   "Battle",
		DeclarerLabel: "Current Player:",
		Icon:          "⚔️",
		Idle:          "Idling around.",
	},
}

// LookupTheme returns the named theme, falling back to "generic".
func LookupTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["generic"]
}
