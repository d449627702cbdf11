package engine

import (
	"fmt"
	"time"
)

// spawnTile places a 2 or 4 on a uniformly chosen empty cell of g. It returns
// nil when the grid has no empty cell.
func spawnTile(g Grid, rng RandSource, fourChance float64) *Spawn {
	empty := g.EmptyCells()
	if len(empty) == 0 {
		return nil
	}
	cell := empty[rng.Intn(len(empty))]
	value := 2
	if rng.Float64() < fourChance {
		value = 4
	}
	g[cell[0]][cell[1]] = value
	return &Spawn{Row: cell[0], Col: cell[1], Value: value}
}

// applyMove slides the grid in dir, swaps in the new grid, spawns a tile when
// anything changed and re-evaluates the terminal condition. The previous grid
// value is never written to.
func (gs *GameState) applyMove(dir Direction, v *Variant, rng RandSource) MoveOutcome {
	outcome := MoveOutcome{Direction: dir}

	next, delta, merges := Slide(gs.Grid, dir)
	if next.Equal(gs.Grid) {
		gs.Message = fmt.Sprintf("Nothing moves %s", dir)
	} else {
		outcome.Moved = true
		outcome.ScoreDelta = delta
		outcome.Merges = merges
		outcome.Spawned = spawnTile(next, rng, v.FourProbability)

		gs.Grid = next
		gs.Score += delta
		if best := next.MaxTile(); best > gs.BestTile {
			gs.BestTile = best
		}

		switch {
		case merges > 0:
			gs.Message = fmt.Sprintf("Moved %s: %d merge(s), +%d points", dir, merges, delta)
		default:
			gs.Message = fmt.Sprintf("Moved %s", dir)
		}

		if !gs.TargetReached && gs.TargetTile > 0 && gs.BestTile >= gs.TargetTile {
			gs.TargetReached = true
			outcome.TargetReached = true
			gs.Message = fmt.Sprintf("Reached %d! Keep going.", gs.TargetTile)
		}
	}

	if gs.Grid.IsOver() {
		gs.Phase = PhaseOver
		outcome.GameOver = true
		gs.Message = fmt.Sprintf("Game over! Final score: %d", gs.Score)
	}

	return outcome
}

// AddMoveToHistory adds a move to the game's move history
func (gs *GameState) AddMoveToHistory(outcome MoveOutcome) {
	entry := MoveHistoryEntry{
		Direction:  outcome.Direction,
		Moved:      outcome.Moved,
		ScoreDelta: outcome.ScoreDelta,
		Score:      gs.Score,
		Spawned:    outcome.Spawned,
		Timestamp:  time.Now().Unix(),
		MoveNumber: gs.TotalMoves + 1,
	}
	// Append to cumulative history (never cleared by reset) and increment total
	gs.MoveHistory = append(gs.MoveHistory, entry)
	gs.TotalMoves++

	// Append to current segment history and increment its counter
	gs.CurrentMoves = append(gs.CurrentMoves, entry)
	gs.CurrentMovesCount++
}

// newGameState builds an empty, idle state for the variant
func newGameState(v *Variant) *GameState {
	return &GameState{
		Grid:         NewGrid(v.GridSize),
		Phase:        PhaseIdle,
		TargetTile:   v.TargetTile,
		VariantName:  v.Name,
		MoveHistory:  []MoveHistoryEntry{},
		CurrentMoves: []MoveHistoryEntry{},
	}
}
