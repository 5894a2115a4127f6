// Package main hosts the purpleify CLI entrypoint and command graph.
//
// The Cobra-based command tree decodes PPDF streams into page images, encodes
// test streams, runs documents through the transform endpoint, and inspects
// the persisted request correlation caches. It centralizes configuration
// resolution, store opening and logger setup so subcommands stay declarative.
package main
