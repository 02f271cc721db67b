// Package server hosts the ClipStash API behind a single HTTP server.
//
// The server builds a consistent middleware chain of request identification,
// logging, CORS, security headers, metrics, and rate limiting so handlers all
// share common protections and instrumentation.
package server
