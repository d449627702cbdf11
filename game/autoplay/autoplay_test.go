package autoplay

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

func duoVariant() *engine.Variant {
	return &engine.Variant{
		Name:            "duo",
		GridSize:        2,
		StartTiles:      2,
		FourProbability: 0.1,
		TargetTile:      16,
	}
}

func TestPlay_RunsToGameOver(t *testing.T) {
	res, err := Play(context.Background(), duoVariant(), 0, engine.WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)

	assert.True(t, res.Finished)
	assert.Positive(t, res.Moves)
	assert.GreaterOrEqual(t, res.BestTile, 2)
	assert.Zero(t, res.Score%2, "scores are sums of merged tiles")
}

func TestPlay_MoveCap(t *testing.T) {
	res, err := Play(context.Background(), engine.DefaultVariant(), 3, engine.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Moves, 3)
	assert.False(t, res.Finished)
}

func TestPlay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Play(ctx, engine.DefaultVariant(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlay_InvalidVariant(t *testing.T) {
	_, err := Play(context.Background(), &engine.Variant{Name: "bad", GridSize: 1}, 0)
	assert.Error(t, err)
}

func TestRun_Reproducible(t *testing.T) {
	cfg := Config{Games: 8, Workers: 3, Seed: 42}

	first, err := Run(context.Background(), duoVariant(), cfg)
	require.NoError(t, err)
	second, err := Run(context.Background(), duoVariant(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 8, first.Games)
	assert.Equal(t, "duo", first.Variant)
	assert.LessOrEqual(t, first.MinScore, first.MaxScore)

	total := 0
	for _, n := range first.BestTiles {
		total += n
	}
	assert.Equal(t, 8, total)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), duoVariant(), Config{})
	assert.ErrorIs(t, err, ErrNoGames)

	_, err = Run(context.Background(), &engine.Variant{Name: "bad"}, Config{Games: 1})
	assert.Error(t, err)
}

func TestSummarise(t *testing.T) {
	stats := summarise("classic", []Result{
		{Score: 100, BestTile: 64, Moves: 50},
		{Score: 300, BestTile: 128, Moves: 90, TargetReached: true},
		{Score: 200, BestTile: 64, Moves: 70},
	})

	assert.Equal(t, 3, stats.Games)
	assert.InDelta(t, 200.0, stats.MeanScore, 1e-9)
	assert.Equal(t, 300, stats.MaxScore)
	assert.Equal(t, 100, stats.MinScore)
	assert.InDelta(t, 70.0, stats.MeanMoves, 1e-9)
	assert.InDelta(t, 1.0/3, stats.TargetRate, 1e-9)
	assert.Equal(t, map[int]int{64: 2, 128: 1}, stats.BestTiles)
	assert.Equal(t, []int{128, 64}, stats.TileLevels())
}
