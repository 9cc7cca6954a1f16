// Package main hosts the mangameta CLI entrypoint and command graph.
//
// The Cobra command tree registers task folders, runs the enrichment
// pipeline against them, and exposes archive inspection, metadata cache
// maintenance, and configuration scaffolding. Configuration resolution,
// logger construction, and provider wiring live in commandContext so
// subcommands only parse flags and render results.
package main
