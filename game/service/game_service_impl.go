package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/tilemerge/game/advisor"
	"github.com/wricardo/mcp-training/tilemerge/game/engine"
	"github.com/wricardo/mcp-training/tilemerge/game/leaderboard"
	"github.com/wricardo/mcp-training/tilemerge/notify"
)

// Default and maximum page sizes for move history
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// announceTimeout bounds a background game-over webhook delivery
const announceTimeout = 30 * time.Second

// gameServiceImpl implements the GameService interface. Every engine access
// happens under the session's turn lock; leaderboard writes and webhook calls
// happen after it is released.
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	scores   ScoreRecorder
	notifier notify.Notifier
	now      func() time.Time
}

// Option customises the game service
type Option func(*gameServiceImpl)

// WithScoreRecorder records finished games
func WithScoreRecorder(r ScoreRecorder) Option {
	return func(s *gameServiceImpl) { s.scores = r }
}

// WithNotifier forwards game results and site events
func WithNotifier(n notify.Notifier) Option {
	return func(s *gameServiceImpl) { s.notifier = n }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a variant display name
func (s *gameServiceImpl) getConfigID(variantName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == variantName {
				return cfg.ConfigID
			}
		}
	}
	if variantName == "" {
		return "classic"
	}
	return variantName
}

// lookup finds a session and touches its access time
func (s *gameServiceImpl) lookup(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		log.Debug().Err(err).Str("session", sess.ID).Msg("Failed to update last access")
	}
	return sess, nil
}

// persist saves a session; the caller holds its turn lock
func (s *gameServiceImpl) persist(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to persist session")
	}
}

// info builds the session DTO under the turn lock
func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	return &SessionInfo{
		ID:             sess.ID,
		VariantName:    s.getConfigID(sess.Variant.Name),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.Snapshot(),
		Variant:        sess.Variant,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, variantName string) (*SessionInfo, error) {
	variant := s.configs.GetDefault()
	if variantName != "" {
		v, err := s.configs.LoadConfig(variantName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					ids := lo.Map(availableConfigs, func(c *ConfigInfo, _ int) string { return c.ConfigID })
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, variantName, ids)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, variantName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", variantName, err)
		}
		variant = v
	}

	sess, err := s.sessions.Create("", variant)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	info := s.info(sess)
	if variantName != "" {
		info.VariantName = variantName
	}
	log.Info().Str("session", sess.ID).Str("variant", info.VariantName).Msg("Game session created")
	return info, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	result := lo.Map(s.sessions.List(), func(sess *Session, _ int) *SessionInfo {
		return s.info(sess)
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %q: %w", sessionID, err)
	}
	log.Info().Str("session", sessionID).Msg("Game session deleted")
	return nil
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	events := []GameEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, s.event("reset", "Game reset to initial state", 0))
	}

	outcome, err := sess.Engine.Move(dir)
	if err != nil {
		if reset {
			s.persist(sess)
		}
		sess.Mu.Unlock()
		return nil, fmt.Errorf("move %s: %w", dir, err)
	}

	events = append(events, s.outcomeEvents(outcome, sess.Engine.State())...)
	state := sess.Engine.Snapshot()
	possible := sess.Engine.PossibleMoves()
	s.persist(sess)
	sess.Mu.Unlock()

	log.Debug().
		Str("session", sess.ID).
		Str("dir", string(dir)).
		Bool("moved", outcome.Moved).
		Int("score", state.Score).
		Int("delta", outcome.ScoreDelta).
		Msg("move")

	if outcome.GameOver {
		s.finishGame(ctx, sess, state)
	}

	return &MoveResult{
		Success:       outcome.Moved,
		Outcome:       outcome,
		GameState:     state,
		Message:       state.Message,
		Events:        events,
		PossibleMoves: possible,
	}, nil
}

// BulkMove executes moves in sequence until one is invalid, the game ends, or
// the list runs out. Requests longer than engine.MaxBulkMoves are truncated.
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}

	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, s.event("reset", "Game reset to initial state", 0))
	}

	if phase := sess.Engine.Phase(); phase != engine.PhasePlaying {
		if reset {
			s.persist(sess)
		}
		sess.Mu.Unlock()
		return nil, fmt.Errorf("bulk move: %w (phase %s)", engine.ErrNotPlaying, phase)
	}

	result.StartScore = sess.Engine.Score()

	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	ended := false
	for i, raw := range moves {
		dir, err := engine.ParseDirection(raw)
		if err != nil {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d: %v", i+1, err)
			result.StopReasonCode = "invalid_direction"
			result.StoppedOnMove = i + 1
			break
		}

		before := sess.Engine.Score()
		outcome, err := sess.Engine.Move(dir)
		if err != nil {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d: %v", i+1, err)
			result.StopReasonCode = "game_over"
			result.StoppedOnMove = i + 1
			break
		}

		result.MovesExecuted++
		if outcome.Moved {
			result.EffectiveMoves++
		}
		result.Events = append(result.Events, s.outcomeEvents(outcome, sess.Engine.State())...)
		result.Steps = append(result.Steps, StepInfo{
			Idx:         i + 1,
			Dir:         dir,
			Moved:       outcome.Moved,
			Merges:      outcome.Merges,
			ScoreBefore: before,
			ScoreAfter:  sess.Engine.Score(),
			Spawned:     outcome.Spawned,
			GameOver:    outcome.GameOver,
		})

		if outcome.GameOver {
			ended = true
			result.StopReasonCode = "game_over"
			if i < len(moves)-1 {
				result.StoppedReason = fmt.Sprintf("game over after move %d", i+1)
				result.StoppedOnMove = i + 1
			}
			break
		}
	}

	if result.Truncated && result.StopReasonCode == "" {
		result.StopReasonCode = "truncated"
		result.StoppedReason = fmt.Sprintf("only the first %d moves were executed", engine.MaxBulkMoves)
	}

	state := sess.Engine.Snapshot()
	result.GameState = state
	result.EndScore = state.Score
	result.ScoreDelta = state.Score - result.StartScore
	result.GameOver = state.Phase == engine.PhaseOver
	result.Message = state.Message
	result.PossibleMoves = sess.Engine.PossibleMoves()
	s.persist(sess)
	sess.Mu.Unlock()

	log.Debug().
		Str("session", sess.ID).
		Int("requested", result.RequestedMoves).
		Int("executed", result.MovesExecuted).
		Int("score", result.EndScore).
		Int("delta", result.ScoreDelta).
		Str("stop", result.StopReasonCode).
		Msg("bulk move")

	if ended {
		s.finishGame(ctx, sess, state)
	}
	return result, nil
}

// Reset starts a new game in the session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	sess.Engine.Reset()
	s.persist(sess)
	return sess.Engine.Snapshot(), nil
}

// Hint asks the advisor for the best next move
func (s *gameServiceImpl) Hint(ctx context.Context, sessionID string) (*HintResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	grid := sess.Engine.Grid()
	playing := sess.Engine.Phase() == engine.PhasePlaying
	possible := sess.Engine.PossibleMoves()
	sess.Mu.Unlock()

	result := &HintResult{PossibleMoves: possible}
	if result.PossibleMoves == nil {
		result.PossibleMoves = []engine.Direction{}
	}
	if !playing {
		return result, nil
	}
	if best, ok := advisor.Best(grid); ok {
		result.Direction = best.Direction
		result.Available = true
		result.ExpectedGain = best.ScoreDelta
	}
	return result, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	return sess.Engine.Snapshot(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	history := sess.Engine.Snapshot().MoveHistory
	sess.Mu.Unlock()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available variants
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific variant
func (s *gameServiceImpl) LoadConfig(ctx context.Context, variantName string) (*engine.Variant, error) {
	return s.configs.LoadConfig(variantName)
}

// SaveConfig saves a variant to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, variantName string, variant *engine.Variant) error {
	return s.configs.SaveConfig(variantName, variant)
}

// Leaderboard returns the best finished games
func (s *gameServiceImpl) Leaderboard(ctx context.Context, variantName string, limit int) ([]leaderboard.Entry, error) {
	if s.scores == nil {
		return []leaderboard.Entry{}, nil
	}
	return s.scores.Top(ctx, variantName, limit)
}

// Notify forwards a site event to the notifier
func (s *gameServiceImpl) Notify(ctx context.Context, event notify.Event) error {
	if s.notifier == nil {
		return notify.ErrNotConfigured
	}
	return s.notifier.Notify(ctx, event)
}

// finishGame records the final score and announces it. Failures are logged
// and never reach the player.
func (s *gameServiceImpl) finishGame(ctx context.Context, sess *Session, state *engine.GameState) {
	ctx = context.WithoutCancel(ctx)
	variant := s.getConfigID(sess.Variant.Name)
	moves := state.CurrentMovesCount

	log.Info().
		Str("session", sess.ID).
		Str("variant", variant).
		Int("score", state.Score).
		Int("best_tile", state.BestTile).
		Int("moves", moves).
		Msg("Game over")

	if s.scores != nil {
		_, err := s.scores.Record(ctx, leaderboard.Entry{
			SessionID: sess.ID,
			Variant:   variant,
			Score:     state.Score,
			BestTile:  state.BestTile,
			Moves:     moves,
		})
		if err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to record final score")
		}
	}

	if s.notifier != nil {
		event := notify.Event{
			EventType: notify.EventGameOver,
			Timestamp: s.now().UTC().Format(time.RFC3339),
			Data: map[string]any{
				"session_id": sess.ID,
				"variant":    variant,
				"score":      state.Score,
				"best_tile":  state.BestTile,
				"moves":      moves,
			},
		}
		// Delivery runs off the request path; retries can outlast the
		// server's write timeout.
		go s.announce(ctx, sess.ID, event)
	}
}

func (s *gameServiceImpl) announce(ctx context.Context, sessionID string, event notify.Event) {
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, event); err != nil && !errors.Is(err, notify.ErrNotConfigured) {
		log.Warn().Err(err).Str("session", sessionID).Msg("Failed to announce game result")
	}
}

func (s *gameServiceImpl) event(typ, msg string, value int) GameEvent {
	return GameEvent{Type: typ, Message: msg, Timestamp: s.now(), Value: value}
}

// outcomeEvents describes a move outcome as events
func (s *gameServiceImpl) outcomeEvents(o engine.MoveOutcome, state *engine.GameState) []GameEvent {
	if !o.Moved {
		events := []GameEvent{s.event("no_op", fmt.Sprintf("Nothing moves %s", o.Direction), 0)}
		if o.GameOver {
			events = append(events, s.event("game_over", state.Message, state.Score))
		}
		return events
	}

	events := []GameEvent{s.event("move", fmt.Sprintf("Moved %s", o.Direction), o.ScoreDelta)}
	if o.Merges > 0 {
		events = append(events, s.event("merge", fmt.Sprintf("%d merge(s), +%d points", o.Merges, o.ScoreDelta), o.ScoreDelta))
	}
	if o.Spawned != nil {
		events = append(events, s.event("spawn",
			fmt.Sprintf("New %d at (%d,%d)", o.Spawned.Value, o.Spawned.Row, o.Spawned.Col), o.Spawned.Value))
	}
	if o.TargetReached {
		events = append(events, s.event("target_reached", fmt.Sprintf("Reached %d!", state.TargetTile), state.TargetTile))
	}
	if o.GameOver {
		events = append(events, s.event("game_over", state.Message, state.Score))
	}
	return events
}
