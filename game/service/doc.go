// Package service provides the business logic layer of the tile merge server.
//
// GameService sits between the transports (REST, WebSocket, MCP) and the
// engine. It resolves sessions and variants, runs moves under each session's
// turn lock, turns move outcomes into GameEvents and hands out state
// snapshots that are safe to encode after the lock is released.
//
// Core Interfaces:
//
// GameService is the high-level API. SessionManager and ConfigManager are
// implemented by the session and config packages. ScoreRecorder is satisfied
// by the leaderboard store and notify.Notifier by the webhook notifier; both
// are optional.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithScoreRecorder(store),
//		service.WithNotifier(notifier),
//	)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	result, err := gameService.Move(ctx, info.ID, "left", false)
//
// When a move ends a game the final score is recorded and a game_over event
// is sent to the notifier. Failures there are logged, never returned.
package service
