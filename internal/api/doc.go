// Package api implements the HTTP REST API and WebSocket server for the turret.
//
// This package provides:
//   - REST endpoints for status, fire, reload, fire session history and
//     the command audit trail
//   - WebSocket hub relaying turret events to subscribed, permitted clients
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Routes
//
//	GET  /api/v1/health              no auth
//	GET  /api/v1/status              turret:read
//	GET  /api/v1/metrics             turret:read
//	GET  /api/v1/sessions?limit=N    turret:read
//	GET  /api/v1/sessions/{id}       turret:read
//	GET  /api/v1/audit               turret:read   ?action=&operator=&source=&limit=&offset=
//	POST /api/v1/auth/ws-ticket      turret:read
//	POST /api/v1/fire                turret:fire    {"count": 3, "request_id": "..."}
//	POST /api/v1/reload              turret:reload
//	GET  /api/v1/ws?ticket=...       ticket
//
// # Fire Requests
//
// POST /fire answers 202 Accepted as soon as the request is queued. The
// sequence runs in the background and its outcome arrives as a fire-done
// event on the WebSocket stream and in the session history.
//
// # Event Stream
//
// Each turret event type is a channel; "*" selects every channel the
// operator's role may read. Subscribing to an unknown channel, or one the
// role cannot read, fails the whole request. A successful subscribe is
// answered with a response frame followed by a status frame holding the
// current turret.Status.
//
// # Security
//
// Tokens are pre-issued (see auth.GenerateAccessToken). WebSocket connections
// use single-use tickets to keep tokens out of URLs.
package api
