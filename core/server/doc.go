// Package server holds the HTTP server configuration.
//
// The server itself is assembled in cmd/start.go; this package only
// carries the settings (listen port, API key) so that core/config can
// compose them without importing Fiber.
package server
