// Package transform drives a PDF through the remote transform service.
//
// A Tracker receives the network events observed for top-level navigations
// and records each request's method, URL and headers in a correlation cache,
// deciding which responses should be redirected to the viewer. Later, a
// Client looks the request up by ID, downloads the original document again
// with the same method and headers (or reads it from disk for file:// URLs),
// posts it to the transform endpoint and decodes the PPDF response into page
// images and a metadata record.
//
// Failures are reported as *Error values whose Kind selects the user-facing
// title and hints.
package transform
