// Package api implements the HTTP REST API and WebSocket server of the
// optical path daemon.
//
// This package provides:
//   - REST endpoints to read and change the optical path mode
//   - mode inference from a list of detectors
//   - the transition history and the hardware inventory
//   - a WebSocket hub relaying path.changed events
//   - Prometheus metrics at /metrics
//
// # Security
//
// Everything below /api/v1 except /health requires an HS256 JWT signed
// with security.jwt.secret, sent as "Authorization: Bearer <token>".
// WebSocket clients, which cannot set headers from a browser, may pass the
// token as the "token" query parameter instead. Tokens are minted with
// IssueToken (pathd token).
//
// # Errors
//
// Errors are JSON objects {status, code, message}. Domain errors map to:
//
//	ErrInvalidMode                         404 not_found
//	ErrNoNonMirrorGrating                  409 conflict
//	ErrNotAStream, ErrNoModeInferred       422 unprocessable
//	malformed request                      400 bad_request
package api
