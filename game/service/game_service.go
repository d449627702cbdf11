package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
	"github.com/wricardo/mcp-training/tilemerge/game/leaderboard"
	"github.com/wricardo/mcp-training/tilemerge/notify"
)

// Lookup errors shared by the session and config implementations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, variantName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)
	Hint(ctx context.Context, sessionID string) (*HintResult, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, variantName string) (*engine.Variant, error)
	SaveConfig(ctx context.Context, variantName string, variant *engine.Variant) error

	// Scores and site events
	Leaderboard(ctx context.Context, variantName string, limit int) ([]leaderboard.Entry, error)
	Notify(ctx context.Context, event notify.Event) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, variant *engine.Variant) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, variant *engine.Variant) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles variant loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Variant, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Variant
	SaveConfig(name string, variant *engine.Variant) error
}

// ScoreRecorder stores the final score of finished games
type ScoreRecorder interface {
	Record(ctx context.Context, entry leaderboard.Entry) (leaderboard.Entry, error)
	Top(ctx context.Context, variant string, limit int) ([]leaderboard.Entry, error)
}

// Session represents an active game session. Mu is the turn lock: every
// read-modify-write of Engine must hold it.
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Variant        *engine.Variant
	CreatedAt      time.Time
	LastAccessedAt time.Time

	Mu sync.Mutex
}
