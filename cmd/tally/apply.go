package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tallyworks/tally/internal/cli"
	"github.com/tallyworks/tally/internal/rules"
)

func applyCmd() *cobra.Command {
	var (
		teamID  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "apply <transaction-id>...",
		Short: "Apply a team's rules to a batch of transactions",
		Long: `Evaluate the team's enabled rules against the given transactions in
priority order and apply the first match's actions to each one.`,
		Args: cobra.MinimumNArgs(1),
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

			bar := progressbar.NewOptions(len(args),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan]Applying rules...[reset]"),
				progressbar.OptionClearOnFinish(),
			)

			engine := rules.NewWithConfig(store, rules.NewDealResolver(store, store), rules.Config{
				Workers: workers,
				OnProgress: func(_, _ int) {
					_ = bar.Add(1)
				},
			})

			result, err := engine.ApplyRules(ctx, teamID, args)
			_ = bar.Finish()
			if err != nil {
				fmt.Println(cli.FormatWarning(fmt.Sprintf(
					"Batch finished with errors: %d applied, %d failed", result.Applied, result.Failed)))
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Applied rules to %d of %d transactions (%d unmatched)",
				result.Applied, len(args), result.Unmatched)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team whose rules to apply")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent transaction workers (0 = default)")

	return cmd
}
