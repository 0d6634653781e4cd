// internal/models/light.go
package models

// LightsCollection holds one record per physical light string.
const LightsCollection = "lights"

// Colour modes a light can be switched to.
var ColourModes = []string{"white", "colour", "rainbow", "gradual"}

// Animations a light can run.
var Animations = []string{"static", "twinkle", "rain", "wave"}

// Light is the controllable state of one light, keyed by its index.
type Light struct {
	Idx              int     `json:"idx"`
	ColourMode       string  `json:"colourMode"`
	ColourHue        float64 `json:"colourHue"`
	ColourSaturation float64 `json:"colourSaturation"`
	Animation        string  `json:"animation"`
}

// DefaultLight is the state a light is seeded with at startup.
func DefaultLight(idx int) Light {
	return Light{
		Idx:              idx,
		ColourMode:       "white",
		ColourHue:        0.0,
		ColourSaturation: 1.0,
		Animation:        "static",
	}
}
