package commands

import (
	"context"
	"fmt"

	"github.com/MultiDragon/libpuns/internal/cli/output"
	"github.com/MultiDragon/libpuns/internal/cli/timeutil"
	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage accounts in the configured database",
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create <login> <token>",
	Short: "Create an account and print its durable object id",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountsCreate,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts in the configured database",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

func init() {
	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCmd.AddCommand(accountsListCmd)
}

func openAccountStore(cmd *cobra.Command) (*database.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "dummy" {
		return nil, fmt.Errorf("%s requires a persistent database driver, got %q", cmd.Name(), cfg.Database.Driver)
	}
	return database.Open(cfg.Database)
}

func runAccountsCreate(cmd *cobra.Command, args []string) error {
	store, err := openAccountStore(cmd)
	if err != nil {
		return err
	}

	oid, err := store.CreateAccount(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	table := output.NewTableData("Login", "Object ID")
	table.AddRow(args[0], oid.String())
	return output.PrintTable(cmd.OutOrStdout(), table)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	store, err := openAccountStore(cmd)
	if err != nil {
		return err
	}

	accounts, err := store.ListAccounts(context.Background())
	if err != nil {
		return err
	}

	table := output.NewTableData("Login", "Object ID", "Created")
	for _, a := range accounts {
		table.AddRow(a.Login, a.OID.String(), timeutil.FormatLocalTime(a.CreatedAt))
	}
	return output.PrintTable(cmd.OutOrStdout(), table)
}
