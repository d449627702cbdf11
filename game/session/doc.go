// Package session keeps the set of running games.
//
// Manager is a thread-safe map of service.Session values keyed
// case-insensitively by ID. IDs are 4 hex characters from crypto/rand unless
// the caller picks one. Each session carries its own turn lock (Session.Mu);
// the manager's map lock only guards membership.
//
// With a SessionPersistence attached the manager writes sessions through to
// storage and lazily loads sessions it does not hold in memory.
// FilePersistence stores one JSON document per session:
//
//	sessions/
//	  a3f9.json   {"id": "a3f9", "config_name": "classic", "variant": {...}, "game_state": {...}}
//
// Usage:
//
//	persistence, _ := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence)
//	_ = manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", variant)
//
// CleanupExpiredSessions evicts idle sessions from memory; their files remain
// and are reloaded on the next Get.
package session
