package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variant describes the rules of a puzzle, loaded from JSON or YAML
type Variant struct {
	Name            string  `json:"name" yaml:"name"`
	Description     string  `json:"description" yaml:"description"`
	GridSize        int     `json:"grid_size" yaml:"grid_size"`
	StartTiles      int     `json:"start_tiles" yaml:"start_tiles"`
	FourProbability float64 `json:"four_probability" yaml:"four_probability"`
	TargetTile      int     `json:"target_tile" yaml:"target_tile"`
}

// DefaultVariant returns the classic 4×4 rules with tiles merging up to 8192
func DefaultVariant() *Variant {
	return &Variant{
		Name:            "classic",
		Description:     "Classic 4x4 board, reach 8192",
		GridSize:        DefaultGridSize,
		StartTiles:      DefaultStartTiles,
		FourProbability: DefaultFourChance,
		TargetTile:      DefaultTargetTile,
	}
}

// ValidateVariant validates a variant for correctness and playability
func ValidateVariant(v *Variant) error {
	if v == nil {
		return fmt.Errorf("variant validation: variant is nil")
	}
	if v.Name == "" {
		return fmt.Errorf("variant validation: name is required")
	}
	if v.GridSize < MinGridSize || v.GridSize > MaxGridSize {
		return fmt.Errorf("variant validation: grid_size must be between %d and %d, got %d", MinGridSize, MaxGridSize, v.GridSize)
	}
	if v.StartTiles < 1 || v.StartTiles > v.GridSize*v.GridSize {
		return fmt.Errorf("variant validation: start_tiles must be between 1 and %d, got %d", v.GridSize*v.GridSize, v.StartTiles)
	}
	if v.FourProbability < 0 || v.FourProbability > 1 {
		return fmt.Errorf("variant validation: four_probability must be between 0 and 1, got %g", v.FourProbability)
	}
	if !isPowerOfTwo(v.TargetTile) || v.TargetTile < 4 {
		return fmt.Errorf("variant validation: target_tile must be a power of two of at least 4, got %d", v.TargetTile)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields with the classic rules. A zero
// four_probability is kept; it means only 2s spawn.
func (v *Variant) ApplyDefaults() {
	if v.GridSize == 0 {
		v.GridSize = DefaultGridSize
	}
	if v.StartTiles == 0 {
		v.StartTiles = DefaultStartTiles
	}
	if v.TargetTile == 0 {
		v.TargetTile = DefaultTargetTile
	}
}

// ParseVariant decodes a variant document. YAML is used for .yaml/.yml names,
// JSON otherwise. Defaults are applied and the result validated.
func ParseVariant(filename string, data []byte) (*Variant, error) {
	var v Variant
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse variant '%s': %w", filename, err)
		}
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse variant '%s': %w", filename, err)
		}
	}
	v.ApplyDefaults()
	if err := ValidateVariant(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadVariant loads a variant from a file on disk
func LoadVariant(path string) (*Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVariant(path, data)
}

// ValidateState checks that a restored state fits the variant: square grid of
// the right size holding only zeros and powers of two.
func ValidateState(state *GameState, v *Variant) error {
	if state == nil {
		return fmt.Errorf("%w: state cannot be nil", ErrInvalidState)
	}
	n := v.GridSize
	if len(state.Grid) != n {
		return fmt.Errorf("%w: grid must have %d rows, got %d", ErrInvalidState, n, len(state.Grid))
	}
	for r, row := range state.Grid {
		if len(row) != n {
			return fmt.Errorf("%w: row %d must have %d cells, got %d", ErrInvalidState, r, n, len(row))
		}
		for c, val := range row {
			if val != 0 && !isPowerOfTwo(val) {
				return fmt.Errorf("%w: cell (%d,%d) holds %d, not a power of two", ErrInvalidState, r, c, val)
			}
		}
	}
	if state.Score < 0 {
		return fmt.Errorf("%w: negative score %d", ErrInvalidState, state.Score)
	}
	switch state.Phase {
	case PhaseIdle, PhasePlaying, PhaseOver:
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, state.Phase)
	}
	return nil
}
