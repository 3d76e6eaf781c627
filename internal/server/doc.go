// Package server exposes a running session over HTTP so other tools can follow and steer it.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the two the control API uses.
//
// The [Mux] implementation uses [http.ServeMux] method patterns internally and records what it registers.
//
// # Control API
//
// [SessionHandler] serves:
//
//	GET  /                    → registered route patterns
//	GET  /healthz             → 204
//	GET  /session             → turn, thinking flag, playing entry, queue and history
//	POST /session/contribute  → {"artist","title"} or {"query":"Artist - Title"}; 201 with the new entry
//	POST /session/skip        → {"entry_id"}; 204
//
// Errors are JSON {"error": "..."}: invalid input is 400, no catalog match or unknown entry is 404 and
// collaborator failures are 502.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
