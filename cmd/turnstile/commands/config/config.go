// Package config implements the "turnstile config" subcommand group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect device configuration",
	Long: `Inspect the device's configuration surface (the keyed map loaded at init).

Subcommands:
  show  Display the effective configuration`,
}

func init() {
	Cmd.AddCommand(showCmd)
}
