package anvil

import "fmt"

const (
	GameTypeSurvival  = 0
	GameTypeCreative  = 1
	GameTypeAdventure = 2
	GameTypeSpectator = 3
)

const (
	VersionMcRegion = 19132
	VersionAnvil    = 19133
)

var GameTypeNames = map[int]string{
	GameTypeSurvival:  "survival",
	GameTypeCreative:  "creative",
	GameTypeAdventure: "adventure",
	GameTypeSpectator: "spectator",
}

var GameTypeCodes = map[string]int{
	"survival":  GameTypeSurvival,
	"creative":  GameTypeCreative,
	"adventure": GameTypeAdventure,
	"spectator": GameTypeSpectator,
}

// DimNames maps a player's Dimension number to the dimension folder name.
var DimNames = map[int]string{
	-1: "DIM-1",
	0:  "",
	1:  "DIM1",
}

var DimNumbers = map[string]int{
	"DIM-1": -1,
	"":      0,
	"DIM1":  1,
}

func init() {
	if err := checkInverse(GameTypeNames, GameTypeCodes); err != nil {
		panic("anvil: game type tables: " + err.Error())
	}
	if err := checkInverse(DimNames, DimNumbers); err != nil {
		panic("anvil: dimension tables: " + err.Error())
	}
}

func checkInverse(names map[int]string, codes map[string]int) error {
	if len(names) != len(codes) {
		return fmt.Errorf("%d names but %d codes", len(names), len(codes))
	}
	for code, name := range names {
		if back, ok := codes[name]; !ok || back != code {
			return fmt.Errorf("%d -> %q does not map back", code, name)
		}
	}
	return nil
}
