// Package handler provides the HTTP request handlers for the Nebula Tower
// API: certificate authority management, organization and host lifecycle,
// invite administration, and the public enrollment endpoint.
//
// All JSON endpoints share one response envelope; bundle downloads are the
// only raw-body responses. Authentication and rate limiting live in the
// enclosing httpserver package.
package handler
