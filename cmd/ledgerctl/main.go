// Command ledgerctl administers the game economy directly against the
// configured database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/config"
	"github.com/treasurehunt/backend/internal/database"
	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/logging"
	"github.com/treasurehunt/backend/internal/services"
)

// app holds the services opened by the root command for its subcommands.
type app struct {
	envFile string
	driver  string
	dbPath  string
	verbose bool

	db       *sql.DB
	users    *services.UserService
	accounts *services.AccountService
	ledger   *services.LedgerService
	history  *services.HistoryService
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer the treasure hunt economy",
		Long: `ledgerctl runs ledger operations against the configured database.

Settings come from the same .env file and environment variables as the
server; --driver and --db override the database selection.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env", ".env", "Config file")
	rootCmd.PersistentFlags().StringVar(&a.driver, "driver", "", "Database driver (postgres or sqlite)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		a.migrateCmd(),
		a.usersCmd(),
		a.accountsCmd(),
		a.depositCmd(),
		a.withdrawCmd(),
		a.transferCmd(),
		a.collectCmd(),
		a.exchangeCmd(),
		a.sendCmd(),
		a.historyCmd(),
	)
	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Database.Driver = a.driver
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}

	logger := zap.NewNop()
	if a.verbose {
		if logger, err = logging.New("debug", true); err != nil {
			return err
		}
	}

	st, db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	a.db = db
	a.users = services.NewUserService(st, logger)
	a.accounts = services.NewAccountService(st, logger)
	a.history = services.NewHistoryService(st)
	a.ledger = services.NewLedgerService(st, events.Nop{}, audit.NewLogger(logger), logger)
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}
