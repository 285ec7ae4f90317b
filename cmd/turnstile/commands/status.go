package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/henryproto/turnstile-emu/internal/adminserver"
	"github.com/henryproto/turnstile-emu/internal/adminserver/handlers"
	"github.com/henryproto/turnstile-emu/internal/cli/output"
	"github.com/henryproto/turnstile-emu/internal/config"
)

var (
	statusOutput string
	statusPort   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running device's status over the admin HTTP surface",
	Long: `Query /status and /readyz on a running turnstile process's admin server
and print the result.

Examples:
  # Check status using the admin port from the config file
  turnstile status --config /etc/turnstile/config.yaml

  # Override the admin port directly
  turnstile status --admin-port 9080`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusPort, "admin-port", 0, "admin server port (default: read from config)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// statusReport is what the status command prints, combining /status and
// /readyz into one view.
type statusReport struct {
	Reachable bool                      `json:"reachable" yaml:"reachable"`
	Status    handlers.StatusResponse   `json:"status,omitempty" yaml:"status,omitempty"`
	Ready     bool                      `json:"ready" yaml:"ready"`
	Error     string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	port := statusPort
	if port == 0 {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config to find admin port: %w", err)
		}
		port = cfg.Admin.Port
	}

	client := &http.Client{Timeout: 5 * time.Second}
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	report := statusReport{}

	var statusEnv adminserver.Response
	statusEnv.Data = &report.Status
	if err := fetchJSON(client, base+"/status", &statusEnv); err != nil {
		report.Error = err.Error()
	} else {
		report.Reachable = true
	}

	var readyEnv adminserver.Response
	if err := fetchJSON(client, base+"/readyz", &readyEnv); err == nil {
		report.Ready = readyEnv.Status == "healthy"
	}

	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}
	printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
	return printer.Print(report)
}

func fetchJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
