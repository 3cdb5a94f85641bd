// Package gateway runs the local HTTP server: an authenticating forward
// proxy for the SeedHub API, session endpoints for the web UI, and the
// navigation guards over the page routes.
package gateway
