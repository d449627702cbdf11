// Command analyze prints quick, human-readable heuristics about the variant
// files in the project's configs directory. For each variant it summarizes
// the grid, then plays a batch of seeded games with the advisor and reports
// how often the target tile was built.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/tilemerge/game/autoplay"
	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

func main() {
	dir := flag.String("dir", "configs", "directory with variant files")
	games := flag.Int("games", 20, "games to play per variant")
	seed := flag.Int64("seed", 1, "random seed (0 for unseeded)")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*.*"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing %s: %v\n", *dir, err)
		os.Exit(1)
	}
	sort.Strings(files)

	cfg := autoplay.Config{Games: *games, Seed: *seed}
	for _, file := range files {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if err := analyzeVariant(context.Background(), os.Stdout, file, cfg); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func analyzeVariant(ctx context.Context, w io.Writer, path string, cfg autoplay.Config) error {
	v, err := engine.LoadVariant(path)
	if err != nil {
		return err
	}

	cells := v.GridSize * v.GridSize
	fmt.Fprintf(w, "Name: %s\n", v.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d (%d cells)\n", v.GridSize, v.GridSize, cells)
	fmt.Fprintf(w, "Starting Tiles: %d\n", v.StartTiles)
	fmt.Fprintf(w, "Chance of a 4: %.0f%%\n", v.FourProbability*100)
	fmt.Fprintf(w, "Target Tile: %d\n", v.TargetTile)

	stats, err := autoplay.Run(ctx, v, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Advisor over %d games: mean score %.0f, best %d, worst %d, mean moves %.0f\n",
		stats.Games, stats.MeanScore, stats.MaxScore, stats.MinScore, stats.MeanMoves)

	if stats.TargetRate > 0 {
		fmt.Fprintf(w, "✅ Target reached in %.0f%% of games\n", stats.TargetRate*100)
	} else {
		fmt.Fprintf(w, "⚠️  Target never reached; consider a lower target_tile\n")
	}

	for _, tile := range stats.TileLevels() {
		fmt.Fprintf(w, "   best tile %6d: %d game(s)\n", tile, stats.BestTiles[tile])
	}
	return nil
}
