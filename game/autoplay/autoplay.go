// Package autoplay plays whole games with the advisor and aggregates the
// results. It backs the simulate command and the variant analyzer.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/tilemerge/game/advisor"
	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

// DefaultMaxMoves caps a single game so a pathological variant cannot spin forever
const DefaultMaxMoves = 100_000

var ErrNoGames = errors.New("at least one game is required")

// Result is the outcome of one game
type Result struct {
	Score         int  `json:"score"`
	BestTile      int  `json:"best_tile"`
	Moves         int  `json:"moves"`
	TargetReached bool `json:"target_reached"`
	Finished      bool `json:"finished"` // false when the move cap stopped the game
}

// Stats summarises a batch of games
type Stats struct {
	Variant    string      `json:"variant"`
	Games      int         `json:"games"`
	MeanScore  float64     `json:"mean_score"`
	MaxScore   int         `json:"max_score"`
	MinScore   int         `json:"min_score"`
	MeanMoves  float64     `json:"mean_moves"`
	TargetRate float64     `json:"target_rate"`
	BestTiles  map[int]int `json:"best_tiles"` // best tile value → games
	Results    []Result    `json:"results"`
}

// Config controls a batch
type Config struct {
	Games    int
	Workers  int
	MaxMoves int
	// Seed makes a batch reproducible: game i uses math/rand seeded with
	// Seed+i. Zero uses the process-wide random source.
	Seed int64
}

// Play runs one game to completion with the advisor choosing every move
func Play(ctx context.Context, v *engine.Variant, maxMoves int, opts ...engine.Option) (Result, error) {
	if maxMoves <= 0 {
		maxMoves = DefaultMaxMoves
	}

	eng, err := engine.NewEngine(v, opts...)
	if err != nil {
		return Result{}, err
	}
	eng.Initialize()

	var res Result
	for res.Moves < maxMoves && eng.Phase() == engine.PhasePlaying {
		if res.Moves%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}

		dir, ok := advisor.Suggest(eng.Grid())
		if !ok {
			break
		}
		if _, err := eng.Move(dir); err != nil {
			return Result{}, fmt.Errorf("move %d: %w", res.Moves+1, err)
		}
		res.Moves++
	}

	state := eng.State()
	res.Score = state.Score
	res.BestTile = state.BestTile
	res.TargetReached = state.TargetReached
	res.Finished = eng.Phase() == engine.PhaseOver
	return res, nil
}

// Run plays cfg.Games games across cfg.Workers goroutines
func Run(ctx context.Context, v *engine.Variant, cfg Config) (*Stats, error) {
	if cfg.Games <= 0 {
		return nil, ErrNoGames
	}
	if err := engine.ValidateVariant(v); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, cfg.Games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range cfg.Games {
		g.Go(func() error {
			var opts []engine.Option
			if cfg.Seed != 0 {
				opts = append(opts, engine.WithRand(rand.New(rand.NewSource(cfg.Seed+int64(i)))))
			}
			res, err := Play(ctx, v, cfg.MaxMoves, opts...)
			if err != nil {
				return fmt.Errorf("game %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarise(v.Name, results), nil
}

func summarise(variant string, results []Result) *Stats {
	scores := lo.Map(results, func(r Result, _ int) int { return r.Score })
	moves := lo.Map(results, func(r Result, _ int) int { return r.Moves })
	reached := lo.CountBy(results, func(r Result) bool { return r.TargetReached })

	return &Stats{
		Variant:    variant,
		Games:      len(results),
		MeanScore:  float64(lo.Sum(scores)) / float64(len(results)),
		MaxScore:   lo.Max(scores),
		MinScore:   lo.Min(scores),
		MeanMoves:  float64(lo.Sum(moves)) / float64(len(results)),
		TargetRate: float64(reached) / float64(len(results)),
		BestTiles:  lo.CountValues(lo.Map(results, func(r Result, _ int) int { return r.BestTile })),
		Results:    results,
	}
}

// TileLevels returns the best tiles seen in a batch, highest first
func (s *Stats) TileLevels() []int {
	tiles := lo.Keys(s.BestTiles)
	sort.Sort(sort.Reverse(sort.IntSlice(tiles)))
	return tiles
}
