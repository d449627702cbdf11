// Package api provides the REST interface of the tile merge server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - create a session ({"config_id": "tiny"}, empty for the default)
//   - GET /api/sessions - list sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - several sessions at once (?sessionIds=a,b or ?variant=classic)
//   - GET /api/sessions/{id} - session info
//   - DELETE /api/sessions/{id} - delete a session
//
// Game operations:
//   - GET /api/sessions/{id}/state - current state
//   - POST /api/sessions/{id}/move - {"direction": "left", "reset": false}
//   - POST /api/sessions/{id}/bulk-move - {"moves": ["up", "left"], "reset": false}
//   - POST /api/sessions/{id}/reset - start over with the same variant
//   - GET /api/sessions/{id}/history - paginated moves (?page=&limit=&order=)
//   - GET /api/sessions/{id}/hint - one-ply suggestion
//   - GET /api/sessions/{id}/board.svg - rendered grid (?tile=px&glow=1)
//
// Variants, scores and events:
//   - GET|POST /api/configs, GET /api/configs/{name}
//   - GET /api/leaderboard?variant=&limit=
//   - POST /api/events - forward a site event to the chat webhook
//   - GET /api/health
//
// Every state change is pushed to the session's spectators on /ws?session=<id>.
//
// Errors are returned as {"error": "..."}. Unknown sessions and variants map
// to 404, invalid directions and variants to 400, and moves on a game that is
// not in progress to 409.
package api
