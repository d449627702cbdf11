package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

const (
	DefaultTileSize = 100
	tileGutter      = 6
	tileRadius      = 14
	backgroundColor = "#0a0a0a"
	labelColor      = "#ffffff"
	glowColor       = "#00ffe7"
)

var palette = map[int]string{
	0:    "#121212",
	2:    "#00ffe7",
	4:    "#00bfff",
	8:    "#00a0d1",
	16:   "#0088b3",
	32:   "#006699",
	64:   "#004d7a",
	128:  "#003d5c",
	256:  "#002d3d",
	512:  "#001f28",
	1024: "#001313",
	2048: "#000909",
	4096: "#001111",
	8192: "#001818",
}

// TileColor returns the fill colour for a tile value
func TileColor(value int) string {
	if c, ok := palette[value]; ok {
		return c
	}
	return "#000000"
}

// Options controls BoardSVG output
type Options struct {
	TileSize float64 // pixel size of one cell including gutter; DefaultTileSize when zero
	Glow     bool    // add a glow behind tile labels
}

// BoardSVG renders the grid as a standalone SVG document
func BoardSVG(g engine.Grid, opts Options) []byte {
	ts := opts.TileSize
	if ts <= 0 {
		ts = DefaultTileSize
	}
	n := g.Size()
	side := ts * float64(n)
	inner := ts - 2*tileGutter

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(side), num(side), num(side), num(side))
	if opts.Glow {
		fmt.Fprintf(&b, `<defs><filter id="glow"><feDropShadow dx="0" dy="0" stdDeviation="6" flood-color="%s"/></filter></defs>`, glowColor)
	}
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, backgroundColor)

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := g[r][c]
			x := float64(c)*ts + tileGutter
			y := float64(r)*ts + tileGutter
			fmt.Fprintf(&b, `<path d="%s" fill="%s"/>`, RoundRect(x, y, inner, inner, tileRadius).SVG(), TileColor(v))
			if v == 0 {
				continue
			}
			filter := ""
			if opts.Glow {
				filter = ` filter="url(#glow)"`
			}
			fmt.Fprintf(&b,
				`<text x="%s" y="%s" fill="%s" font-family="Inter, sans-serif" font-weight="bold" font-size="%s" text-anchor="middle" dominant-baseline="central"%s>%d</text>`,
				num(x+inner/2), num(y+inner/2), labelColor, num(labelSize(ts, v)), filter, v)
		}
	}
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// labelSize shrinks the font for long numbers so they stay inside the tile
func labelSize(ts float64, v int) float64 {
	size := ts / 2
	if digits := len(strconv.Itoa(v)); digits > 3 {
		size = size * 3 / float64(digits)
	}
	return size
}

// BoardText renders the grid as right-aligned columns with '.' for empty cells
func BoardText(g engine.Grid) string {
	width := len(strconv.Itoa(g.MaxTile()))
	rows := lo.Map(g, func(row []int, _ int) string {
		cells := lo.Map(row, func(v int, _ int) string {
			if v == 0 {
				return fmt.Sprintf("%*s", width, ".")
			}
			return fmt.Sprintf("%*d", width, v)
		})
		return strings.Join(cells, " ")
	})
	return strings.Join(rows, "\n")
}
