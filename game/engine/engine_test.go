package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays fixed values; once exhausted it returns 0.
type scriptedRand struct {
	ints   []int
	floats []float64
}

func (s *scriptedRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.5
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func createTestEngine(t *testing.T, opts ...Option) *GameEngine {
	t.Helper()
	eng, err := NewEngine(DefaultVariant(), opts...)
	require.NoError(t, err)
	return eng
}

// forceGrid puts the engine into the Playing phase with the given grid and score
func forceGrid(t *testing.T, eng *GameEngine, g Grid, score int) {
	t.Helper()
	state := eng.State()
	state.Grid = g.Clone()
	state.Score = score
	state.Phase = PhasePlaying
	require.NoError(t, eng.SetState(state))
}

func TestNewEngine(t *testing.T) {
	eng := createTestEngine(t)

	assert.Equal(t, PhaseIdle, eng.Phase())
	assert.Equal(t, 0, eng.Score())
	assert.Equal(t, 0, eng.Grid().CountTiles())
	assert.Equal(t, "classic", eng.Variant().Name)
}

func TestNewEngine_InvalidVariant(t *testing.T) {
	v := DefaultVariant()
	v.GridSize = 1

	_, err := NewEngine(v)
	require.Error(t, err)
}

func TestEngine_Initialize(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		eng := createTestEngine(t, WithRand(rand.New(rand.NewSource(seed))))
		state := eng.Initialize()

		assert.Equal(t, PhasePlaying, state.Phase)
		assert.Equal(t, 0, state.Score)
		require.Equal(t, 2, state.Grid.CountTiles(), "seed %d", seed)
		for _, row := range state.Grid {
			for _, v := range row {
				assert.Contains(t, []int{0, 2, 4}, v)
			}
		}
	}
}

func TestEngine_InitializeSpawnValues(t *testing.T) {
	// first tile: index 3 of 16, float 0.95 -> 2; second tile: index 0 of 15, float 0.05 -> 4
	eng := createTestEngine(t, WithRand(&scriptedRand{
		ints:   []int{3, 0},
		floats: []float64{0.95, 0.05},
	}))
	eng.Initialize()

	g := eng.Grid()
	assert.Equal(t, 2, g[0][3])
	assert.Equal(t, 4, g[0][0])
	assert.Equal(t, 4, eng.BestTile())
}

func TestEngine_MoveScenario(t *testing.T) {
	eng := createTestEngine(t, WithRand(&scriptedRand{ints: []int{7}, floats: []float64{0.5}}))
	eng.Initialize()
	forceGrid(t, eng, Grid{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0)

	outcome, err := eng.Move(Left)
	require.NoError(t, err)

	assert.True(t, outcome.Moved)
	assert.Equal(t, 4, outcome.ScoreDelta)
	assert.Equal(t, 4, eng.Score())
	require.NotNil(t, outcome.Spawned)
	assert.Contains(t, []int{2, 4}, outcome.Spawned.Value)

	g := eng.Grid()
	assert.Equal(t, 4, g[0][0])
	assert.Equal(t, 2, g.CountTiles())
	assert.False(t, outcome.Spawned.Row == 0 && outcome.Spawned.Col == 0, "spawn must land on a previously empty cell")
	assert.Equal(t, outcome.Spawned.Value, g[outcome.Spawned.Row][outcome.Spawned.Col])
}

func TestEngine_NoOpMove(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	start := Grid{
		{2, 4, 0, 0},
		{8, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	forceGrid(t, eng, start, 16)

	outcome, err := eng.Move(Left)
	require.NoError(t, err)

	assert.False(t, outcome.Moved)
	assert.Nil(t, outcome.Spawned)
	assert.Equal(t, 0, outcome.ScoreDelta)
	assert.True(t, eng.Grid().Equal(start))
	assert.Equal(t, 16, eng.Score())
	assert.Equal(t, PhasePlaying, eng.Phase())
}

func TestEngine_MoveScoreAccounting(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	forceGrid(t, eng, Grid{
		{2, 2, 4, 4},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 100)

	outcome, err := eng.Move(Left)
	require.NoError(t, err)

	assert.Equal(t, 12, outcome.ScoreDelta)
	assert.Equal(t, 2, outcome.Merges)
	assert.Equal(t, 112, eng.Score())
	assert.Equal(t, []int{4, 8}, []int(eng.Grid()[0][:2]))
}

func TestEngine_SpawnAddsAtMostOneTile(t *testing.T) {
	eng := createTestEngine(t, WithRand(rand.New(rand.NewSource(42))))
	eng.Initialize()

	for i := 0; i < 500 && eng.Phase() == PhasePlaying; i++ {
		before := eng.Grid()
		prevScore := eng.Score()

		outcome, err := eng.Move(Directions[i%len(Directions)])
		require.NoError(t, err)

		after := eng.Grid()
		assert.GreaterOrEqual(t, eng.Score(), prevScore, "score never decreases")
		if outcome.Moved {
			slid, _, _ := Slide(before, outcome.Direction)
			assert.Equal(t, slid.CountTiles()+1, after.CountTiles())
		} else {
			assert.True(t, before.Equal(after))
		}
	}
}

func TestEngine_GameOver(t *testing.T) {
	stuck := Grid{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	}

	for _, dir := range Directions {
		t.Run(string(dir), func(t *testing.T) {
			eng := createTestEngine(t)
			eng.Initialize()
			forceGrid(t, eng, stuck, 50)
			assert.Equal(t, PhaseOver, eng.Phase(), "a locked board is restored as over")

			outcome, err := eng.Move(dir)
			assert.ErrorIs(t, err, ErrNotPlaying)

			assert.False(t, outcome.Moved)
			assert.True(t, outcome.GameOver)
			assert.True(t, eng.IsOver())
			assert.Equal(t, PhaseOver, eng.Phase())
			assert.True(t, eng.Grid().Equal(stuck))
			assert.Equal(t, 50, eng.Score())
		})
	}
}

func TestEngine_MoveThatLocksTheBoard(t *testing.T) {
	duo := &Variant{Name: "duo", GridSize: 2, StartTiles: 1, TargetTile: 16}
	eng, err := NewEngine(duo, WithRand(&scriptedRand{}))
	require.NoError(t, err)
	eng.Initialize()
	forceGrid(t, eng, Grid{{2, 4}, {0, 8}}, 40)
	require.Equal(t, PhasePlaying, eng.Phase())

	outcome, err := eng.Move(Left)
	require.NoError(t, err)

	assert.True(t, outcome.Moved)
	assert.True(t, outcome.GameOver)
	assert.Equal(t, Grid{{2, 4}, {8, 2}}, eng.Grid())
	assert.Equal(t, PhaseOver, eng.Phase())
}

func TestEngine_SetStateDerivesPhase(t *testing.T) {
	locked := Grid{{2, 4}, {4, 2}}
	duo := &Variant{Name: "duo", GridSize: 2, StartTiles: 1, TargetTile: 16}

	tests := []struct {
		name  string
		grid  Grid
		phase Phase
		want  Phase
	}{
		{"playing on a locked board", locked, PhasePlaying, PhaseOver},
		{"playing with room left", Grid{{2, 0}, {4, 2}}, PhasePlaying, PhasePlaying},
		{"idle stays idle", locked, PhaseIdle, PhaseIdle},
		{"over stays over", Grid{{2, 0}, {0, 0}}, PhaseOver, PhaseOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := NewEngine(duo)
			require.NoError(t, err)

			require.NoError(t, eng.SetState(&GameState{Grid: tt.grid.Clone(), Score: 12, Phase: tt.phase}))
			assert.Equal(t, tt.want, eng.Phase())
		})
	}
}

func TestEngine_MoveAfterGameOver(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	state := eng.State()
	state.Phase = PhaseOver
	require.NoError(t, eng.SetState(state))
	snapshot := eng.Grid()
	moves := len(eng.MoveHistory())

	_, err := eng.Move(Left)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPlaying))
	assert.True(t, eng.Grid().Equal(snapshot))
	assert.Len(t, eng.MoveHistory(), moves)
}

func TestEngine_MoveBeforeInitialize(t *testing.T) {
	eng := createTestEngine(t)

	_, err := eng.Move(Up)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestEngine_InvalidDirection(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	snapshot := eng.Grid()

	_, err := eng.Move(Direction("sideways"))
	assert.ErrorIs(t, err, ErrInvalidDirection)
	assert.True(t, eng.Grid().Equal(snapshot))
	assert.Empty(t, eng.MoveHistory())
}

func TestEngine_TargetReached(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	forceGrid(t, eng, Grid{
		{4096, 4096, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0)

	outcome, err := eng.Move(Left)
	require.NoError(t, err)
	assert.True(t, outcome.TargetReached)
	assert.True(t, eng.State().TargetReached)
	assert.Equal(t, 8192, eng.BestTile())
	assert.Equal(t, PhasePlaying, eng.Phase(), "play continues past the target")

	outcome, err = eng.Move(Right)
	require.NoError(t, err)
	assert.False(t, outcome.TargetReached, "reported only once")
}

func TestEngine_CanMoveAndPossibleMoves(t *testing.T) {
	eng := createTestEngine(t)
	eng.Initialize()
	forceGrid(t, eng, Grid{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 0)

	assert.False(t, eng.CanMove(Up))
	assert.False(t, eng.CanMove(Left))
	assert.True(t, eng.CanMove(Right))
	assert.True(t, eng.CanMove(Down))
	assert.False(t, eng.CanMove(Direction("nope")))
	assert.Equal(t, []Direction{Right, Down}, eng.PossibleMoves())
}

func TestEngine_BulkMove(t *testing.T) {
	eng := createTestEngine(t, WithRand(rand.New(rand.NewSource(7))))
	eng.Initialize()

	outcomes, err := eng.BulkMove([]Direction{Left, Right, Up, Down})
	require.NoError(t, err)
	assert.Len(t, outcomes, 4)
	assert.Equal(t, 4, eng.State().CurrentMovesCount)

	outcomes, err = eng.BulkMove([]Direction{Left, "bogus", Right})
	assert.ErrorIs(t, err, ErrInvalidDirection)
	assert.Len(t, outcomes, 1)
}

func TestEngine_ResetKeepsCumulativeHistory(t *testing.T) {
	eng := createTestEngine(t, WithRand(rand.New(rand.NewSource(3))))
	eng.Initialize()
	_, err := eng.BulkMove([]Direction{Left, Up, Right})
	require.NoError(t, err)

	state := eng.Reset()
	assert.Equal(t, 3, state.TotalMoves)
	assert.Len(t, state.MoveHistory, 3)
	assert.Equal(t, 0, state.CurrentMovesCount)
	assert.Empty(t, state.CurrentMoves)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, PhasePlaying, state.Phase)

	last := eng.LastMove()
	require.NotNil(t, last)
	assert.Equal(t, 3, last.MoveNumber)
}

func TestEngine_SetStateValidation(t *testing.T) {
	eng := createTestEngine(t)

	tests := []struct {
		name  string
		state *GameState
	}{
		{"nil state", nil},
		{"wrong row count", &GameState{Grid: NewGrid(3), Phase: PhasePlaying}},
		{"ragged row", &GameState{Grid: Grid{{0, 0, 0, 0}, {0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, Phase: PhasePlaying}},
		{"not a power of two", &GameState{Grid: Grid{{3, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, Phase: PhasePlaying}},
		{"unknown phase", &GameState{Grid: NewGrid(4), Phase: "paused"}},
		{"negative score", &GameState{Grid: NewGrid(4), Phase: PhasePlaying, Score: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, eng.SetState(tt.state), ErrInvalidState)
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input string
		want  Direction
		ok    bool
	}{
		{"up", Up, true},
		{"DOWN", Down, true},
		{" left ", Left, true},
		{"ArrowRight", Right, true},
		{"ArrowUp", Up, true},
		{"", "", false},
		{"north", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_SnapshotIsDetached(t *testing.T) {
	eng := createTestEngine(t, WithRand(rand.New(rand.NewSource(11))))
	eng.Initialize()

	snap := eng.Snapshot()
	snap.Grid[0][0] = 1024
	snap.Score = 999
	snap.MoveHistory = append(snap.MoveHistory, MoveHistoryEntry{Direction: Up})

	assert.NotEqual(t, 999, eng.Score())
	assert.Empty(t, eng.MoveHistory())
	assert.NotEqual(t, snap.Grid, eng.Grid())
}
