package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyworks/tally/internal/cli"
	"github.com/tallyworks/tally/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage transaction rules",
		Long:  `List, add, enable, disable, and delete the rules applied to incoming transactions.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(setRuleEnabledCmd("enable", true))
	cmd.AddCommand(setRuleEnabledCmd("disable", false))
	cmd.AddCommand(deleteRuleCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all rules for a team",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireTeamID(teamID); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(ctx, teamID)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(ruleSet) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules found. Use 'tally rules add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Name"),
				cli.HeaderStyle.Render("Priority"),
				cli.HeaderStyle.Render("Enabled"),
				cli.HeaderStyle.Render("Criteria"),
				cli.HeaderStyle.Render("Actions"))

			for _, rule := range ruleSet {
				enabled := cli.SuccessStyle.Render("yes")
				if !rule.Enabled {
					enabled = cli.SubtleStyle.Render("no")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					rule.ID, rule.Name, rule.Priority, enabled,
					describeCriteria(rule), describeActions(rule))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the rules belong to")

	return cmd
}

func addRuleCmd() *cobra.Command {
	var (
		teamID        string
		name          string
		priority      int
		merchant      string
		matchType     string
		amountOp      string
		amountValue   float64
		amountMax     float64
		accountID     string
		dateStart     string
		dateEnd       string
		setCategory   string
		setMerchant   string
		setExcluded   bool
		setAssigned   string
		setDealCode   string
		autoResolve   bool
		tagIDs        []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new rule",
		Long: `Create a new transaction rule. All criteria are optional; a rule with no
criteria matches every transaction and can serve as a low-priority catch-all.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireTeamID(teamID); err != nil {
				return err
			}
			ctx := cmd.Context()

			rule := model.Rule{
				TeamID:          teamID,
				Name:            name,
				Enabled:         true,
				Priority:        priority,
				AutoResolveDeal: autoResolve,
			}

			if cmd.Flags().Changed("merchant") {
				rule.MerchantMatch = &merchant
			}
			if matchType != "" {
				rule.MerchantMatchType = model.MerchantMatchType(matchType)
			}
			if cmd.Flags().Changed("amount-op") {
				op := model.AmountOperator(amountOp)
				rule.AmountOperator = &op
			}
			if cmd.Flags().Changed("amount") {
				rule.AmountValue = &amountValue
			}
			if cmd.Flags().Changed("amount-max") {
				rule.AmountValueMax = &amountMax
			}
			if cmd.Flags().Changed("account-id") {
				rule.AccountID = &accountID
			}
			if cmd.Flags().Changed("date-start") {
				start, err := time.Parse("2006-01-02", dateStart)
				if err != nil {
					return fmt.Errorf("invalid --date-start: %w", err)
				}
				rule.DateStart = &start
			}
			if cmd.Flags().Changed("date-end") {
				end, err := time.Parse("2006-01-02", dateEnd)
				if err != nil {
					return fmt.Errorf("invalid --date-end: %w", err)
				}
				rule.DateEnd = &end
			}
			if cmd.Flags().Changed("set-category") {
				rule.SetCategorySlug = &setCategory
			}
			if cmd.Flags().Changed("set-merchant") {
				rule.SetMerchantName = &setMerchant
			}
			// --set-excluded=false is a real value to set, not an absence.
			if cmd.Flags().Changed("set-excluded") {
				rule.SetExcluded = &setExcluded
			}
			if cmd.Flags().Changed("assign") {
				rule.SetAssignedID = &setAssigned
			}
			if cmd.Flags().Changed("deal-code") {
				rule.SetDealCode = &setDealCode
			}
			rule.AddTagIDs = tagIDs

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %q (%s)", rule.Name, rule.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the rule belongs to")
	cmd.Flags().StringVar(&name, "name", "", "rule name, stamped on matched transactions")
	cmd.Flags().IntVar(&priority, "priority", 0, "evaluation priority (lower runs first)")
	cmd.Flags().StringVar(&merchant, "merchant", "", "merchant text to match")
	cmd.Flags().StringVar(&matchType, "match-type", "", "merchant match type (contains, exact, starts_with)")
	cmd.Flags().StringVar(&amountOp, "amount-op", "", "amount operator (eq, gt, lt, between)")
	cmd.Flags().Float64Var(&amountValue, "amount", 0, "amount to compare against")
	cmd.Flags().Float64Var(&amountMax, "amount-max", 0, "upper bound for the between operator")
	cmd.Flags().StringVar(&accountID, "account-id", "", "restrict to a bank account")
	cmd.Flags().StringVar(&dateStart, "date-start", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateEnd, "date-end", "", "inclusive end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&setCategory, "set-category", "", "category slug to assign")
	cmd.Flags().StringVar(&setMerchant, "set-merchant", "", "merchant name to assign")
	cmd.Flags().BoolVar(&setExcluded, "set-excluded", false, "mark matched transactions as internal/excluded")
	cmd.Flags().StringVar(&setAssigned, "assign", "", "user id to assign")
	cmd.Flags().StringVar(&setDealCode, "deal-code", "", "deal code to link directly")
	cmd.Flags().BoolVar(&autoResolve, "auto-resolve-deal", false, "resolve a deal via the merchant lookup chain")
	cmd.Flags().StringSliceVar(&tagIDs, "tag", nil, "tag id to associate (repeatable)")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func setRuleEnabledCmd(use string, enabled bool) *cobra.Command {
	var teamID string

	short := "Disable a rule"
	if enabled {
		short = "Enable a rule"
	}

	cmd := &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
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

			rule, err := store.UpdateRule(ctx, teamID, args[0], model.RuleUpdate{Enabled: &enabled})
			if err != nil {
				return fmt.Errorf("failed to %s rule: %w", use, err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule %q %sd", rule.Name, use)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the rule belongs to")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
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

			rule, err := store.DeleteRule(ctx, teamID, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %q", rule.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team-id", "", "team the rule belongs to")

	return cmd
}

func describeCriteria(rule model.Rule) string {
	var parts []string
	if rule.MerchantMatch != nil {
		parts = append(parts, fmt.Sprintf("merchant %s %q", rule.MerchantMatchType, *rule.MerchantMatch))
	}
	if rule.AmountOperator != nil && rule.AmountValue != nil {
		if *rule.AmountOperator == model.AmountBetween && rule.AmountValueMax != nil {
			parts = append(parts, fmt.Sprintf("amount between %.2f and %.2f", *rule.AmountValue, *rule.AmountValueMax))
		} else {
			parts = append(parts, fmt.Sprintf("amount %s %.2f", *rule.AmountOperator, *rule.AmountValue))
		}
	}
	if rule.AccountID != nil {
		parts = append(parts, "account "+*rule.AccountID)
	}
	if rule.DateStart != nil || rule.DateEnd != nil {
		parts = append(parts, "date range")
	}
	if len(parts) == 0 {
		return "(catch-all)"
	}
	return strings.Join(parts, ", ")
}

func describeActions(rule model.Rule) string {
	var parts []string
	if rule.SetCategorySlug != nil {
		parts = append(parts, "category="+*rule.SetCategorySlug)
	}
	if rule.SetMerchantName != nil {
		parts = append(parts, "merchant="+*rule.SetMerchantName)
	}
	if rule.SetExcluded != nil {
		parts = append(parts, fmt.Sprintf("excluded=%t", *rule.SetExcluded))
	}
	if rule.SetAssignedID != nil {
		parts = append(parts, "assign="+*rule.SetAssignedID)
	}
	if rule.SetDealCode != nil {
		parts = append(parts, "deal="+*rule.SetDealCode)
	}
	if rule.AutoResolveDeal {
		parts = append(parts, "auto-resolve-deal")
	}
	if len(rule.AddTagIDs) > 0 {
		parts = append(parts, fmt.Sprintf("tags=%s", strings.Join(rule.AddTagIDs, ",")))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, ", ")
}
