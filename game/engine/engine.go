package engine

import "fmt"

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	Initialize() *GameState
	Reset() *GameState
	State() *GameState
	SetState(state *GameState) error
	Grid() Grid
	Score() int
	Phase() Phase
	BestTile() int
	IsOver() bool

	// Movement operations
	Move(dir Direction) (MoveOutcome, error)
	BulkMove(dirs []Direction) ([]MoveOutcome, error)
	CanMove(dir Direction) bool
	PossibleMoves() []Direction

	// Configuration
	Variant() *Variant

	// History
	MoveHistory() []MoveHistoryEntry
	LastMove() *MoveHistoryEntry
}

// Option customises a GameEngine
type Option func(*GameEngine)

// WithRand injects the random source used for tile spawning
func WithRand(rng RandSource) Option {
	return func(e *GameEngine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// GameEngine implements the Engine interface. It is not safe for concurrent
// moves; callers sharing an engine must serialise turns.
type GameEngine struct {
	state   *GameState
	variant *Variant
	rng     RandSource
}

// NewEngine creates an idle engine for the variant. Call Initialize to deal
// the starting tiles.
func NewEngine(variant *Variant, opts ...Option) (*GameEngine, error) {
	if err := ValidateVariant(variant); err != nil {
		return nil, err
	}

	e := &GameEngine{
		variant: variant,
		rng:     DefaultRand(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = newGameState(variant)
	return e, nil
}

// NewEngineWithDefaults creates an engine with the classic variant
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e, _ := NewEngine(DefaultVariant(), opts...)
	return e
}

// Initialize starts a new game: score 0, empty grid, the variant's starting
// tiles placed, phase Playing. Cumulative history survives; the current
// segment is cleared.
func (e *GameEngine) Initialize() *GameState {
	prevHistory := e.state.MoveHistory
	prevTotal := e.state.TotalMoves

	e.state = newGameState(e.variant)
	e.state.MoveHistory = prevHistory
	e.state.TotalMoves = prevTotal

	for i := 0; i < e.variant.StartTiles; i++ {
		spawnTile(e.state.Grid, e.rng, e.variant.FourProbability)
	}
	e.state.BestTile = e.state.Grid.MaxTile()
	e.state.Phase = PhasePlaying
	e.state.Message = fmt.Sprintf("New game: %s", e.variant.Name)

	if e.state.Grid.IsOver() {
		e.state.Phase = PhaseOver
		e.state.Message = fmt.Sprintf("Game over! Final score: %d", e.state.Score)
	}
	return e.state
}

// Reset restarts the game; same as Initialize
func (e *GameEngine) Reset() *GameState {
	return e.Initialize()
}

// State returns the current game state
func (e *GameEngine) State() *GameState {
	return e.state
}

// Snapshot returns a deep copy of the current state, safe to read after the
// turn lock is released
func (e *GameEngine) Snapshot() *GameState {
	s := *e.state
	s.Grid = e.state.Grid.Clone()
	s.MoveHistory = append([]MoveHistoryEntry(nil), e.state.MoveHistory...)
	s.CurrentMoves = append([]MoveHistoryEntry(nil), e.state.CurrentMoves...)
	if s.MoveHistory == nil {
		s.MoveHistory = []MoveHistoryEntry{}
	}
	if s.CurrentMoves == nil {
		s.CurrentMoves = []MoveHistoryEntry{}
	}
	return &s
}

// SetState sets the game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if err := ValidateState(state, e.variant); err != nil {
		return err
	}
	if state.TargetTile == 0 {
		state.TargetTile = e.variant.TargetTile
	}
	if state.MoveHistory == nil {
		state.MoveHistory = []MoveHistoryEntry{}
	}
	if state.CurrentMoves == nil {
		state.CurrentMoves = []MoveHistoryEntry{}
	}
	if best := state.Grid.MaxTile(); best > state.BestTile {
		state.BestTile = best
	}
	if state.Phase == PhasePlaying && state.Grid.IsOver() {
		state.Phase = PhaseOver
		state.Message = fmt.Sprintf("Game over! Final score: %d", state.Score)
	}
	e.state = state
	return nil
}

// Grid returns a snapshot of the current grid
func (e *GameEngine) Grid() Grid {
	return e.state.Grid.Clone()
}

// Score returns the current score
func (e *GameEngine) Score() int {
	return e.state.Score
}

// Phase returns the lifecycle phase
func (e *GameEngine) Phase() Phase {
	return e.state.Phase
}

// BestTile returns the largest tile seen this game
func (e *GameEngine) BestTile() int {
	return e.state.BestTile
}

// IsOver reports whether the current grid admits no further move
func (e *GameEngine) IsOver() bool {
	return e.state.Grid.IsOver()
}

// Move applies one directional command. Unknown directions fail with
// ErrInvalidDirection and moves outside the Playing phase fail with
// ErrNotPlaying; in both cases the state is untouched.
func (e *GameEngine) Move(dir Direction) (MoveOutcome, error) {
	if !dir.Valid() {
		return MoveOutcome{}, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if e.state.Phase != PhasePlaying {
		return MoveOutcome{Direction: dir, GameOver: e.state.Phase == PhaseOver},
			fmt.Errorf("%w (phase %s)", ErrNotPlaying, e.state.Phase)
	}

	outcome := e.state.applyMove(dir, e.variant, e.rng)
	e.state.AddMoveToHistory(outcome)
	return outcome, nil
}

// BulkMove executes moves in order, stopping at the first error or when the
// game ends. Outcomes of the executed moves are returned.
func (e *GameEngine) BulkMove(dirs []Direction) ([]MoveOutcome, error) {
	results := make([]MoveOutcome, 0, len(dirs))

	for _, dir := range dirs {
		outcome, err := e.Move(dir)
		if err != nil {
			return results, err
		}
		results = append(results, outcome)

		if outcome.GameOver {
			break
		}
	}

	return results, nil
}

// CanMove reports whether moving in dir would change the grid
func (e *GameEngine) CanMove(dir Direction) bool {
	if e.state.Phase != PhasePlaying || !dir.Valid() {
		return false
	}
	next, _, _ := Slide(e.state.Grid, dir)
	return !next.Equal(e.state.Grid)
}

// PossibleMoves returns all directions that would change the grid
func (e *GameEngine) PossibleMoves() []Direction {
	var possible []Direction
	for _, dir := range Directions {
		if e.CanMove(dir) {
			possible = append(possible, dir)
		}
	}
	return possible
}

// Variant returns the rules this engine plays by
func (e *GameEngine) Variant() *Variant {
	return e.variant
}

// MoveHistory returns the complete move history
func (e *GameEngine) MoveHistory() []MoveHistoryEntry {
	return e.state.MoveHistory
}

// LastMove returns the last move made, or nil if no moves
func (e *GameEngine) LastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	return &e.state.MoveHistory[len(e.state.MoveHistory)-1]
}
