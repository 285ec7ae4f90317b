// Command turnstile runs the Henry-protocol turnstile emulator: a
// single-connection device process plus the unauthenticated admin HTTP
// surface (/healthz, /status, /metrics), driven by the CLI in
// cmd/turnstile/commands.
package main

import (
	"fmt"
	"os"

	"github.com/henryproto/turnstile-emu/cmd/turnstile/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
