package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is one of the four cardinal move commands
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists every valid direction in tie-break order
var Directions = []Direction{Up, Left, Right, Down}

// Phase represents the coarse lifecycle state of a game
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseOver    Phase = "over"
)

const (
	// Validation constants
	MinGridSize         = 2
	MaxGridSize         = 8
	DefaultGridSize     = 4
	DefaultStartTiles   = 2
	DefaultTargetTile   = 8192
	DefaultFourChance   = 0.1
	MaxBulkMoves        = 100
	WebSocketBufferSize = 256
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNotPlaying       = errors.New("game is not in progress")
	ErrInvalidState     = errors.New("invalid game state")
)

// ParseDirection converts user input into a Direction. Arrow key names
// ("ArrowUp") are accepted alongside the plain names, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	d := strings.ToLower(strings.TrimSpace(s))
	d = strings.TrimPrefix(d, "arrow")
	switch Direction(d) {
	case Up, Down, Left, Right:
		return Direction(d), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Valid reports whether d is one of the four cardinal directions
func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

// rotations returns how many canonical 90° rotations turn d into Left
func (d Direction) rotations() int {
	switch d {
	case Down:
		return 1
	case Right:
		return 2
	case Up:
		return 3
	}
	return 0
}

// Grid is a square matrix of tile values, indexed [row][col]
type Grid [][]int

// Spawn describes a tile placed on an empty cell
type Spawn struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Value int `json:"value"`
}

// MoveOutcome reports what a single move did to the game
type MoveOutcome struct {
	Direction     Direction `json:"direction"`
	Moved         bool      `json:"moved"`
	ScoreDelta    int       `json:"score_delta"`
	Merges        int       `json:"merges"`
	Spawned       *Spawn    `json:"spawned,omitempty"`
	GameOver      bool      `json:"game_over"`
	TargetReached bool      `json:"target_reached,omitempty"` // set only on the move that first reached it
}

// GameState represents the complete game state
type GameState struct {
	Grid          Grid               `json:"grid"`
	Score         int                `json:"score"`
	Phase         Phase              `json:"phase"`
	BestTile      int                `json:"best_tile"`
	TargetTile    int                `json:"target_tile"`
	TargetReached bool               `json:"target_reached"`
	VariantName   string             `json:"variant_name"`
	Message       string             `json:"message"`
	MoveHistory   []MoveHistoryEntry `json:"move_history"`
	TotalMoves    int                `json:"total_moves"`

	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`
}

// MoveHistoryEntry represents a single move in the game history
type MoveHistoryEntry struct {
	Direction  Direction `json:"direction"`
	Moved      bool      `json:"moved"`
	ScoreDelta int       `json:"score_delta"`
	Score      int       `json:"score"`
	Spawned    *Spawn    `json:"spawned,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	MoveNumber int       `json:"move_number"`
}
