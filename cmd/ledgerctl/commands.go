package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/services"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the database already migrates it.
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func (a *app) usersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage players",
	}

	var name string
	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a player with the default accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.users.Create(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Display name (default: Player <id>)")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a player and their accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.users.GetWithAccounts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Find players by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			users, err := a.users.Search(cmd.Context(), term)
			if err != nil {
				return err
			}
			return printJSON(cmd, users)
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Change a player's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.users.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a player and their accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.users.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	usersCmd.AddCommand(createCmd, getCmd, searchCmd, renameCmd, deleteCmd)
	return usersCmd
}

func (a *app) accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts <user-id>",
		Short: "Show a player's account summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.accounts.GetSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
}

func (a *app) depositCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "deposit <account-id> <amount>",
		Short: "Add external money to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			txn, err := a.ledger.Deposit(cmd.Context(), id, amount, description)
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	return cmd
}

func (a *app) withdrawCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "withdraw <account-id> <amount>",
		Short: "Take money out of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			txn, err := a.ledger.Withdraw(cmd.Context(), id, amount, description)
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	return cmd
}

func (a *app) transferCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "transfer <from-account-id> <to-account-id> <amount>",
		Short: "Move money between two accounts of one player",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID(args[0])
			if err != nil {
				return err
			}
			to, err := parseID(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			txn, err := a.ledger.Transfer(cmd.Context(), from, to, amount, description)
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	return cmd
}

func (a *app) collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <user-id>",
		Short: "Add one gold bar to a player's treasure chest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txn, err := a.ledger.CollectGoldBar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
}

func (a *app) exchangeCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "exchange <user-id> <bars>",
		Short: "Exchange gold bars for cash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid bar count %q", args[1])
			}
			txn, err := a.ledger.ExchangeGold(cmd.Context(), args[0], bars, models.AccountType(to))
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
	cmd.Flags().StringVar(&to, "to", string(models.AccountTypeChecking), "Destination account type")
	return cmd
}

func (a *app) sendCmd() *cobra.Command {
	var p services.SendMoneyParams
	var fromType, toType string
	cmd := &cobra.Command{
		Use:   "send <from-user-id> <to-user-id> <amount>",
		Short: "Send money from one player to another",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			p.FromUserID, p.ToUserID, p.Amount = args[0], args[1], amount
			p.FromAccountType = models.AccountType(fromType)
			p.ToAccountType = models.AccountType(toType)
			txn, err := a.ledger.SendMoney(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}
	cmd.Flags().StringVar(&fromType, "from-type", string(models.AccountTypeChecking), "Sender account type")
	cmd.Flags().StringVar(&toType, "to-type", string(models.AccountTypeChecking), "Recipient account type")
	cmd.Flags().StringVar(&p.Description, "description", "", "Transaction description")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var accountID int64
	cmd := &cobra.Command{
		Use:   "history [user-id]",
		Short: "List transactions, newest first",
		Long:  "List a player's transactions, or one account's with --account.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				txns []models.Transaction
				err  error
			)
			switch {
			case accountID > 0:
				txns, err = a.history.ForAccount(cmd.Context(), accountID, limit)
			case len(args) == 1:
				txns, err = a.history.ForUser(cmd.Context(), args[0], limit)
			default:
				return fmt.Errorf("history needs a user id or --account")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, txns)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", services.DefaultHistoryLimit, "Maximum number of transactions")
	cmd.Flags().Int64Var(&accountID, "account", 0, "Account id")
	return cmd
}
