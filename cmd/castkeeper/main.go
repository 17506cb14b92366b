// castkeeper: audio cast MCP server
//
// Turns agent-written transcripts into padded WAV audio casts stored next
// to a verbatim script, one episode at a time per feature.
//
// Usage:
//
//	castkeeper serve          # Start MCP server (stdio transport)
//	castkeeper casts          # List recorded casts
//	castkeeper config init    # Write a sample config file
package main

import (
	"context"
	"errors"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			errorColour.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
