// Command validate checks the variant files in a configs directory. It
// checks:
//   - JSON or YAML structure and required fields
//   - Grid size, starting tiles and spawn probability within range
//   - A power-of-two target tile the grid can actually hold
//   - File names that differ from the variant name (informational)
//
// Usage: validate [dir]   (default ../configs)
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// maxReachableTile is the largest tile an n×n grid can build: every cell
// filled with a descending chain ending in a spawned 4.
func maxReachableTile(n int) int {
	cells := n * n
	if cells+1 >= 62 {
		return int(^uint(0) >> 1)
	}
	return 1 << (cells + 1)
}

// validateVariant loads and validates a single variant file
func validateVariant(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	v, err := engine.ParseVariant(filePath, data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ Grid: %dx%d, %d starting tile(s)", v.GridSize, v.GridSize, v.StartTiles),
		fmt.Sprintf("✓ Spawn: 4 with probability %.2f", v.FourProbability),
	)

	if limit := maxReachableTile(v.GridSize); v.TargetTile > limit {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Target %d cannot be built on a %dx%d grid (largest possible tile is %d)", v.TargetTile, v.GridSize, v.GridSize, limit))
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Target: %d", v.TargetTile))
	}

	if id := strings.TrimSuffix(result.File, filepath.Ext(result.File)); !strings.EqualFold(id, v.Name) {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Note: loaded as %q, displayed as %q", id, v.Name))
	}

	return result
}

// variantFiles lists the JSON and YAML files in dir, sorted by name
func variantFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main validates every variant file in the directory, printing a concise
// report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := variantFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding variant files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No variant files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateVariant(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All variants are valid!")
	} else {
		fmt.Println("❌ Some variants have errors")
		os.Exit(1)
	}
}
