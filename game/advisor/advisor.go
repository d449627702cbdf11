// Package advisor suggests moves by looking one slide ahead.
package advisor

import (
	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

const emptyCellWeight = 4

// Suggestion is the evaluation of one candidate move
type Suggestion struct {
	Direction  engine.Direction `json:"direction"`
	ScoreDelta int              `json:"score_delta"`
	EmptyCells int              `json:"empty_cells"`
	Value      int              `json:"value"`
}

// Evaluate scores every direction that changes the grid, in engine.Directions order
func Evaluate(g engine.Grid) []Suggestion {
	var out []Suggestion
	for _, dir := range engine.Directions {
		next, delta, _ := engine.Slide(g, dir)
		if next.Equal(g) {
			continue
		}
		empty := len(next.EmptyCells())
		out = append(out, Suggestion{
			Direction:  dir,
			ScoreDelta: delta,
			EmptyCells: empty,
			Value:      delta + emptyCellWeight*empty + cornerBonus(next),
		})
	}
	return out
}

// Best returns the highest valued suggestion. Ties keep the earlier direction.
func Best(g engine.Grid) (Suggestion, bool) {
	var best Suggestion
	found := false
	for _, s := range Evaluate(g) {
		if !found || s.Value > best.Value {
			best, found = s, true
		}
	}
	return best, found
}

// Suggest returns the best direction, or false when nothing moves
func Suggest(g engine.Grid) (engine.Direction, bool) {
	s, ok := Best(g)
	return s.Direction, ok
}

// cornerBonus rewards keeping the largest tile in a corner
func cornerBonus(g engine.Grid) int {
	n := g.Size()
	if n == 0 {
		return 0
	}
	max := g.MaxTile()
	for _, v := range []int{g[0][0], g[0][n-1], g[n-1][0], g[n-1][n-1]} {
		if v == max {
			return max
		}
	}
	return 0
}
