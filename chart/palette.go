package chart

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/aclements/go-gg/palette"
)

// ============================================================================
// PALETTES
// ============================================================================

var palettes = map[string][]string{
	"default": {
		"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
		"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
	},
	"plotly": {
		"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
		"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
	},
	"pastel": {
		"#FBB4AE", "#B3CDE3", "#CCEBC5", "#DECBE4", "#FED9A6",
		"#FFFFCC", "#E5D8BD", "#FDDAEC", "#F2F2F2",
	},
	"dark": {
		"#1B9E77", "#D95F02", "#7570B3", "#E7298A", "#66A61E",
		"#E6AB02", "#A6761D", "#666666",
	},
}

// continuous palettes are sampled evenly across the number of categories.
var continuous = map[string]palette.Continuous{
	"viridis": palette.Viridis,
}

// Palettes lists every palette name.
func Palettes() []string {
	out := make([]string, 0, len(palettes)+len(continuous))
	for n := range palettes {
		out = append(out, n)
	}
	for n := range continuous {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasPalette reports whether name is a known palette.
func HasPalette(name string) bool {
	name = strings.ToLower(name)
	_, ok := palettes[name]
	if !ok {
		_, ok = continuous[name]
	}
	return ok
}

// Colors returns n colors from the named palette, cycling discrete palettes.
// Unknown names fall back to "default".
func Colors(name string, n int) []string {
	name = strings.ToLower(name)
	out := make([]string, n)
	if c, ok := continuous[name]; ok {
		for i := range out {
			x := 0.0
			if n > 1 {
				x = float64(i) / float64(n-1)
			}
			out[i] = hex(c.Map(x))
		}
		return out
	}
	colors, ok := palettes[name]
	if !ok {
		colors = palettes["default"]
	}
	for i := range out {
		out[i] = colors[i%len(colors)]
	}
	return out
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}

// colorizer assigns a stable color per category: the override when present,
// else the palette color of the category's first-appearance index.
type colorizer struct {
	overrides map[string]string
	colors    []string
	index     map[string]int
}

func newColorizer(name string, categories []string, overrides map[string]string) *colorizer {
	c := &colorizer{
		overrides: overrides,
		colors:    Colors(name, max(len(categories), 1)),
		index:     make(map[string]int, len(categories)),
	}
	for i, cat := range categories {
		c.index[cat] = i
	}
	return c
}

func (c *colorizer) color(category string) string {
	if col, ok := c.overrides[category]; ok && col != "" {
		return col
	}
	i, ok := c.index[category]
	if !ok {
		i = len(c.index)
	}
	return c.colors[i%len(c.colors)]
}
