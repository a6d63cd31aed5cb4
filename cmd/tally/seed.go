package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyworks/tally/internal/cli"
	"github.com/tallyworks/tally/internal/model"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert merchants, deals, and transactions",
		Long: `Insert individual records directly. Useful for wiring up a new team or
exercising rules against known data before pointing an importer at the
database.`,
	}

	cmd.AddCommand(seedMerchantCmd())
	cmd.AddCommand(seedDealCmd())
	cmd.AddCommand(seedTransactionCmd())

	return cmd
}

func seedMerchantCmd() *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "merchant <name>",
		Short: "Create a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(teamID); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merchant := model.Merchant{TeamID: teamID, Name: args[0]}
			if err := store.CreateMerchant(ctx, &merchant); err != nil {
				return fmt.Errorf("failed to create merchant: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created merchant %q (%s)", merchant.Name, merchant.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the merchant belongs to")

	return cmd
}

func seedDealCmd() *cobra.Command {
	var (
		teamID     string
		merchantID string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "deal <deal-code>",
		Short: "Create a deal for a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(teamID); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			deal := model.Deal{
				TeamID:     teamID,
				MerchantID: merchantID,
				DealCode:   args[0],
				Status:     model.DealStatus(status),
			}
			if err := store.CreateDeal(ctx, &deal); err != nil {
				return fmt.Errorf("failed to create deal: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created deal %s (%s)", deal.DealCode, deal.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the deal belongs to")
	cmd.Flags().StringVar(&merchantID, "merchant-id", "", "merchant that owns the deal")
	cmd.Flags().StringVar(&status, "status", "", "deal status (active, completed, defaulted; default active)")
	_ = cmd.MarkFlagRequired("merchant-id")

	return cmd
}

func seedTransactionCmd() *cobra.Command {
	var (
		teamID    string
		id        string
		name      string
		merchant  string
		accountID string
		amount    float64
		date      string
	)

	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Insert a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireTeamID(teamID); err != nil {
				return err
			}
			ctx := cmd.Context()

			txnDate, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn := model.Transaction{
				ID:            id,
				TeamID:        teamID,
				Date:          txnDate,
				Name:          name,
				MerchantName:  merchant,
				BankAccountID: accountID,
				Amount:        amount,
			}
			if err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved transaction %s", txn.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the transaction belongs to")
	cmd.Flags().StringVar(&id, "id", "", "transaction id")
	cmd.Flags().StringVar(&name, "name", "", "raw transaction description")
	cmd.Flags().StringVar(&merchant, "merchant", "", "provider-assigned merchant name")
	cmd.Flags().StringVar(&accountID, "account-id", "", "bank account id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "signed amount")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}
