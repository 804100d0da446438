package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davenport-labs/conjure/internal/credit"
)

func newCreditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Wallet administration commands",
	}

	cmd.AddCommand(newCreditGrantCmd())
	cmd.AddCommand(newCreditBalanceCmd())
	return cmd
}

// methodFromFlags picks the wallet a command operates on.
func methodFromFlags(userID, guildID string) (credit.Method, error) {
	switch {
	case userID != "" && guildID != "":
		return credit.Method{}, fmt.Errorf("pass either --user or --guild, not both")
	case userID != "":
		return credit.UserMethod(userID), nil
	case guildID != "":
		return credit.GuildMethod(guildID), nil
	default:
		return credit.Method{}, fmt.Errorf("one of --user or --guild is required")
	}
}

func newCreditGrantCmd() *cobra.Command {
	var configPath, userID, guildID string
	var amount int64

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to a wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := methodFromFlags(userID, guildID)
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := credit.Deposit(gormDB, method, amount); err != nil {
				return err
			}
			balance, err := credit.Balance(gormDB, method)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %d credits, balance is now %d\n", amount, balance)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "user wallet to credit")
	cmd.Flags().StringVar(&guildID, "guild", "", "guild wallet to credit")
	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to add")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newCreditBalanceCmd() *cobra.Command {
	var configPath, userID, guildID string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := methodFromFlags(userID, guildID)
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			balance, err := credit.Balance(gormDB, method)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", balance)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "user wallet")
	cmd.Flags().StringVar(&guildID, "guild", "", "guild wallet")
	return cmd
}
