// Package httpd implements the hand-rolled HTTP/1.1 engine.
//
// Owns:
//   - Raw request parsing from a single socket read
//   - Response construction and wire serialization
//   - Route table, auth/admin gating, and dispatch
//   - The sequential accept loop and per-connection lifecycle
//
// Does not own:
//   - Session resolution and rate-limit accounting (narrow interfaces,
//     implemented by internal/session and internal/ratelimit)
//   - Business handlers registered on the router
//
// Invariants:
//   - One connection is handled start-to-finish before the next accept
//   - A request is whatever arrives in one blocking read; no continuation
//     reads, no keep-alive, the connection is closed after every response
//   - After any body mutation a response carries exactly one Content-Length
//     header equal to the body length in bytes
//   - The route table is written once at startup and read-only afterward
package httpd
