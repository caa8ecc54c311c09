// Package notabene is an offline-first personal note-taking service with
// eventual cloud synchronization.
//
// Free-text captures are classified into one of four collections (thoughts,
// tasks, tagged notes, investment notes) and written to an embedded SQLite
// store first, so every operation succeeds without a network. Each write
// then flows through a durable outbox to a per-user SurrealDB database in
// the background, with exponential backoff until it lands. Task due dates
// drive best-effort all-day events in an external calendar.
//
// # Architecture
//
//   - [github.com/notabene-app/notabene/pkg/models]: the Note record, kinds, ids, lifecycle states
//   - [github.com/notabene-app/notabene/pkg/store]: the store contract shared by both backends
//   - [github.com/notabene-app/notabene/pkg/store/local]: GORM/SQLite on-device store, always available
//   - [github.com/notabene-app/notabene/pkg/store/remote]: SurrealDB over WebSocket with live queries
//   - [github.com/notabene-app/notabene/pkg/store/outbox]: durable mirror queue with retries
//   - [github.com/notabene-app/notabene/pkg/notes]: the synchronization facade for dual writes,
//     listeners, soft-delete undo, conversion, migration bootstrap
//   - [github.com/notabene-app/notabene/pkg/notabene]: configuration, wiring, HTTP API
//   - [github.com/notabene-app/notabene/pkg/client]: typed REST client for the API
//
// The write path is fixed: local store, then listener fan-out, then the
// outbox entry, then (tasks with due dates) the calendar side effect. Only
// the first two are synchronous; the rest never block or fail a caller.
//
// # Running
//
// The notabene command serves the HTTP API:
//
//	notabene serve
//
// and offers direct subcommands: capture, list, migrate, sync. Configuration
// comes from NOTABENE_* environment variables, with .env support for
// development; see [github.com/notabene-app/notabene/pkg/notabene.LoadConfig].
package notabene
