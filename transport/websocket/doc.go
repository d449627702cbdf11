// Package websocket pushes live game updates to spectators.
//
// A Hub tracks the connections attached to each session. Clients connect to
// /ws?session=<id> and only receive messages for that session. Session IDs
// are matched case-insensitively.
//
// Outgoing messages are JSON:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//	{"session_id": "ab12", "event": "game_over", "data": {...}}
//
// Spectators are read-only. Anything they send is discarded; the read loop
// only exists to handle pongs and close frames.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastToSession(id, state)
//
// Concurrency:
//
// The session map is owned by the Run goroutine. Broadcasts are queued and
// never block the caller; once Run has returned they are discarded.
// Clients that cannot keep up are disconnected.
package websocket
