// Package commands implements the turnstile CLI: a cobra root command
// with a persistent --config flag and one subcommand per lifecycle
// operation.
package commands

import (
	"os"

	configcmd "github.com/henryproto/turnstile-emu/cmd/turnstile/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// cfgFile is the global --config flag.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Henry-protocol turnstile emulator",
	Long: `turnstile emulates a Henry-protocol access-control turnstile: a single
TCP connection carrying framed REON/management traffic, a state machine
driving a physical rotor, and a local catalog of credentials and events.

Use "turnstile [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (when omitted, no file is read: env vars and defaults only)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("turnstile %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}

// Exit prints an error to stderr and exits with status 1, for commands
// that can't return an error through cobra (none currently need it,
// kept for parity).
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
