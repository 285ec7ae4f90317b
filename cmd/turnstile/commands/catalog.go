package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/cli/output"
	"github.com/henryproto/turnstile-emu/internal/cli/prompt"
	"github.com/henryproto/turnstile-emu/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or reset the enrolled-user catalog",
	Long: `Operate on the device's durable catalog database directly, without
going through the Henry wire protocol. Useful for inspecting what a
running or stopped device has enrolled.`,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogClearCmd)
	rootCmd.AddCommand(catalogCmd)
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	RunE:  runCatalogList,
}

type userTable []catalog.User

func (t userTable) Headers() []string {
	return []string{"MATRICULA", "NAME", "ACTIVE", "CARD", "BIOMETRIC", "KEYPAD"}
}

func (t userTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{
			u.ID, u.Name, yesNo(u.Active), yesNo(u.AllowCard), yesNo(u.AllowBiometric), yesNo(u.AllowKeypad),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := catalog.Open(resolveCatalogPath(cfg.Catalog.Path))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = store.Close() }()

	users, err := store.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	return output.PrintTable(cmd.OutOrStdout(), userTable(users))
}

var catalogClearForce bool

var catalogClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase every enrolled user, credential index, and event record",
	Long: `Wipe the entire catalog database: enrolled users, card/keypad/biometric
indexes, and the access event log. This is the one destructive catalog
operation, so it prompts for confirmation unless --force is given.`,
	RunE: runCatalogClear,
}

func init() {
	catalogClearCmd.Flags().BoolVar(&catalogClearForce, "force", false, "skip the confirmation prompt")
}

func runCatalogClear(cmd *cobra.Command, args []string) error {
	confirmed, err := prompt.ConfirmWithForce("This will permanently erase every enrolled user and event record. Continue?", catalogClearForce)
	if err != nil {
		return err
	}
	if !confirmed {
		cmd.Println("Aborted.")
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := catalog.Open(resolveCatalogPath(cfg.Catalog.Path))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing catalog: %w", err)
	}

	cmd.Println("Catalog cleared.")
	return nil
}
