package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tallyworks/tally/internal/model"
)

// Result summarizes one ApplyRules invocation. Applied counts only
// transactions whose matched rule's effects were fully written; when the
// batch fails partway through, the counts still reflect completed work.
type Result struct {
	Applied   int
	Unmatched int
	Failed    int
}

// Engine evaluates a tenant's rules against batches of transactions and
// applies the first match's actions.
type Engine struct {
	storage    Storage
	resolver   DealResolver
	onProgress func(completed, total int)
	workers    int
}

// Config holds configuration options for the engine.
type Config struct {
	// Workers bounds the number of transactions evaluated concurrently.
	Workers int
	// OnProgress, when set, is called after each transaction finishes.
	OnProgress func(completed, total int)
}

// DefaultConfig returns the default configuration. The worker count is kept
// small because SQLite serializes writes anyway.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
	}
}

// New creates a rule engine with the default configuration.
func New(storage Storage, resolver DealResolver) *Engine {
	return NewWithConfig(storage, resolver, DefaultConfig())
}

// NewWithConfig creates a rule engine with custom configuration.
func NewWithConfig(storage Storage, resolver DealResolver, config Config) *Engine {
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}
	return &Engine{
		storage:    storage,
		resolver:   resolver,
		workers:    workers,
		onProgress: config.OnProgress,
	}
}

// ApplyRules loads the tenant's enabled rules once, fetches the referenced
// transactions, and for each transaction applies the first matching rule's
// actions. Evaluation is first-match-wins: at most one rule's actions are
// ever applied to a transaction per invocation.
//
// Transactions are processed independently on a bounded worker pool. A write
// failure on one transaction does not stop the others; the first error is
// returned alongside the partial counts.
func (e *Engine) ApplyRules(ctx context.Context, teamID string, transactionIDs []string) (Result, error) {
	if teamID == "" {
		return Result{}, fmt.Errorf("teamID is required")
	}
	if len(transactionIDs) == 0 {
		return Result{}, nil
	}

	ruleSet, err := e.storage.ListEnabledRules(ctx, teamID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(ruleSet) == 0 {
		slog.Debug("No enabled rules, skipping batch", "team_id", teamID)
		return Result{}, nil
	}

	transactions, err := e.storage.GetTransactionsByIDs(ctx, teamID, transactionIDs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		return Result{}, nil
	}

	slog.Info("Applying rules",
		"team_id", teamID,
		"rules", len(ruleSet),
		"transactions", len(transactions))

	var (
		applied   atomic.Int64
		unmatched atomic.Int64
		failed    atomic.Int64
		completed atomic.Int64
	)

	total := len(transactions)

	// The rule slice is an immutable snapshot for the whole batch; workers
	// only read it.
	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, txn := range transactions {
		txn := txn
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			defer func() {
				done := int(completed.Add(1))
				if e.onProgress != nil {
					e.onProgress(done, total)
				}
			}()

			rule := firstMatch(ruleSet, txn)
			if rule == nil {
				unmatched.Add(1)
				return nil
			}

			if err := e.applyActions(ctx, teamID, txn, rule); err != nil {
				failed.Add(1)
				slog.Error("Failed to apply rule",
					"team_id", teamID,
					"transaction_id", txn.ID,
					"rule", rule.Name,
					"error", err)
				return err
			}

			applied.Add(1)
			slog.Debug("Applied rule",
				"transaction_id", txn.ID,
				"rule", rule.Name)
			return nil
		})
	}

	waitErr := g.Wait()

	result := Result{
		Applied:   int(applied.Load()),
		Unmatched: int(unmatched.Load()),
		Failed:    int(failed.Load()),
	}

	return result, waitErr
}

// applyActions writes a matched rule's effects: one coalesced field update,
// then idempotent tag links. A deal-resolution failure is treated as a miss
// so the rule's other actions still apply.
func (e *Engine) applyActions(ctx context.Context, teamID string, txn model.Transaction, rule *model.Rule) error {
	now := time.Now().UTC()
	update := buildUpdate(rule, now)

	if rule.AutoResolveDeal && e.resolver != nil {
		if merchantText := txn.EffectiveMerchant(); merchantText != "" {
			link, err := e.resolver.ResolveDealForMerchant(ctx, teamID, merchantText)
			switch {
			case err != nil:
				slog.Warn("Deal resolution failed, continuing without linkage",
					"transaction_id", txn.ID,
					"merchant", merchantText,
					"error", err)
			case link != nil:
				applyDealLink(&update, link, rule.Name, now)
			}
		}
	}

	if !update.IsZero() {
		if err := e.storage.UpdateTransaction(ctx, teamID, txn.ID, update); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
	}

	for _, tagID := range rule.AddTagIDs {
		if err := e.storage.InsertTagLink(ctx, teamID, txn.ID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %s: %w", tagID, err)
		}
	}

	return nil
}
