// Package engine provides the core game logic for the tile merge puzzle.
//
// The engine package implements the game mechanics including:
//   - A square grid of power-of-two tiles (0 marks an empty cell)
//   - Directional moves reduced to a single slide-left routine by rotation
//   - Single-pass merging with score accounting
//   - Random tile spawning through an injectable random source
//   - Explicit lifecycle phases (idle, playing, over)
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState represents the current game state,
// while Variant defines the rules (grid size, spawn odds, target tile)
// loaded from JSON or YAML files.
//
// Usage:
//
//	eng, err := engine.NewEngine(engine.DefaultVariant())
//	if err != nil {
//		log.Fatal(err)
//	}
//	eng.Initialize()
//
//	outcome, err := eng.Move(engine.Left)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if outcome.GameOver {
//		fmt.Println("final score", eng.Score())
//	}
//
// Game Rules:
//
// Every move slides all tiles toward one edge. Two adjacent tiles of equal
// value merge into one tile of double the value and the merged value is
// added to the score. A tile produced by a merge does not merge again during
// the same move. When the board changes, one new tile (2, or 4 with a small
// probability) appears on a random empty cell. The game ends when the grid is
// full and no two neighbouring cells are equal.
package engine
