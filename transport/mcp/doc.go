// Package mcp exposes the tile merge game to AI agents over the Model Context
// Protocol.
//
// Client is a thin proxy: every tool call becomes a request against the REST
// API, and the JSON reply is turned into readable text. The grid is rendered
// with render.BoardText.
//
// Tools:
//   - create_session, get_session, list_sessions
//   - game_state, move, bulk_move, hint, reset_game, move_history
//   - list_configs, leaderboard, game_instructions
//
// move and bulk_move accept an "intent" argument that is never sent to the
// server.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", version)
//	server.ServeStdio(client.GetMCPServer())
//
// The serve command also answers single JSON-RPC messages on POST /mcp.
package mcp
