package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/henryproto/turnstile-emu/internal/cli/output"
	"github.com/henryproto/turnstile-emu/internal/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Load and display the device's effective configuration: the file
contents (if any), environment overrides, and every defaulted field, the
same shape the device process itself loads at startup.

Examples:
  # Show as YAML (default)
  turnstile config show --config /etc/turnstile/config.yaml

  # Show as JSON
  turnstile config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
