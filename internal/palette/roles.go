package palette

import (
	"math"
	"sort"
)

// Palette maps each colour role to a "#rrggbb" hex string. Roles that no
// swatch qualifies for stay empty and are omitted when encoded.
type Palette struct {
	Dominant     string `json:"dominant,omitempty"`
	Average      string `json:"average,omitempty"`
	Vibrant      string `json:"vibrant,omitempty"`
	DarkVibrant  string `json:"darkVibrant,omitempty"`
	LightVibrant string `json:"lightVibrant,omitempty"`
	DarkMuted    string `json:"darkMuted,omitempty"`
	LightMuted   string `json:"lightMuted,omitempty"`
}

func (p Palette) IsEmpty() bool {
	return p == Palette{}
}

// Colors returns the non-empty roles in fixed order: dominant, average,
// vibrant, dark vibrant, light vibrant, dark muted, light muted.
func (p Palette) Colors() []string {
	ordered := []string{p.Dominant, p.Average, p.Vibrant, p.DarkVibrant, p.LightVibrant, p.DarkMuted, p.LightMuted}
	colors := make([]string, 0, len(ordered))
	for _, value := range ordered {
		if value != "" {
			colors = append(colors, value)
		}
	}
	return colors
}

// Roles returns the non-empty entries keyed by role name.
func (p Palette) Roles() map[string]string {
	roles := make(map[string]string, 7)
	for name, value := range map[string]string{
		"dominant":     p.Dominant,
		"average":      p.Average,
		"vibrant":      p.Vibrant,
		"darkVibrant":  p.DarkVibrant,
		"lightVibrant": p.LightVibrant,
		"darkMuted":    p.DarkMuted,
		"lightMuted":   p.LightMuted,
	} {
		if value != "" {
			roles[name] = value
		}
	}
	return roles
}

type roleTarget struct {
	minSaturation    float64
	targetSaturation float64
	maxSaturation    float64
	minLightness     float64
	targetLightness  float64
	maxLightness     float64
	assign           func(*Palette, string)
}

var roleTargets = []roleTarget{
	{
		minSaturation: 0.35, targetSaturation: 1, maxSaturation: 1,
		minLightness: 0.3, targetLightness: 0.5, maxLightness: 0.7,
		assign: func(p *Palette, hex string) { p.Vibrant = hex },
	},
	{
		minSaturation: 0.35, targetSaturation: 1, maxSaturation: 1,
		minLightness: 0.55, targetLightness: 0.74, maxLightness: 1,
		assign: func(p *Palette, hex string) { p.LightVibrant = hex },
	},
	{
		minSaturation: 0.35, targetSaturation: 1, maxSaturation: 1,
		minLightness: 0, targetLightness: 0.26, maxLightness: 0.45,
		assign: func(p *Palette, hex string) { p.DarkVibrant = hex },
	},
	{
		minSaturation: 0, targetSaturation: 0.3, maxSaturation: 0.4,
		minLightness: 0.55, targetLightness: 0.74, maxLightness: 1,
		assign: func(p *Palette, hex string) { p.LightMuted = hex },
	},
	{
		minSaturation: 0, targetSaturation: 0.3, maxSaturation: 0.4,
		minLightness: 0, targetLightness: 0.26, maxLightness: 0.45,
		assign: func(p *Palette, hex string) { p.DarkMuted = hex },
	},
}

const (
	saturationWeight = 0.24
	lightnessWeight  = 0.52
	populationWeight = 0.24
)

func assignRoles(swatches []swatch, average swatch) Palette {
	result := Palette{}
	if len(swatches) == 0 {
		return result
	}

	ordered := append([]swatch(nil), swatches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].population > ordered[j].population
	})

	result.Dominant = ordered[0].color.Hex()
	if average.population > 0 {
		result.Average = average.color.Hex()
	}

	maxPopulation := float64(ordered[0].population)
	used := make(map[int]struct{}, len(roleTargets))
	for _, target := range roleTargets {
		best := -1
		bestScore := math.Inf(-1)
		for index, candidate := range ordered {
			if _, taken := used[index]; taken {
				continue
			}
			if !target.accepts(candidate) {
				continue
			}

			score := target.score(candidate, maxPopulation)
			if score > bestScore {
				best = index
				bestScore = score
			}
		}

		if best < 0 {
			continue
		}
		used[best] = struct{}{}
		target.assign(&result, ordered[best].color.Hex())
	}

	return result
}

func (t roleTarget) accepts(candidate swatch) bool {
	return candidate.saturation >= t.minSaturation &&
		candidate.saturation <= t.maxSaturation &&
		candidate.lightness >= t.minLightness &&
		candidate.lightness <= t.maxLightness
}

func (t roleTarget) score(candidate swatch, maxPopulation float64) float64 {
	saturationScore := 1 - math.Abs(candidate.saturation-t.targetSaturation)
	lightnessScore := 1 - math.Abs(candidate.lightness-t.targetLightness)
	populationScore := 0.0
	if maxPopulation > 0 {
		populationScore = float64(candidate.population) / maxPopulation
	}

	return saturationScore*saturationWeight + lightnessScore*lightnessWeight + populationScore*populationWeight
}
