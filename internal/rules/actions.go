package rules

import (
	"time"

	"github.com/tallyworks/tally/internal/model"
)

// buildUpdate translates a matched rule's action fields into a partial
// transaction update. Actions are independent and additive, and an
// explicitly-false SetExcluded is a real value to set, not an absence.
func buildUpdate(rule *model.Rule, now time.Time) model.TransactionUpdate {
	var update model.TransactionUpdate

	if rule.SetCategorySlug != nil {
		update.CategorySlug = rule.SetCategorySlug
	}
	if rule.SetMerchantName != nil {
		update.MerchantName = rule.SetMerchantName
	}
	if rule.SetExcluded != nil {
		update.Internal = rule.SetExcluded
	}
	if rule.SetAssignedID != nil {
		update.AssignedID = rule.SetAssignedID
	}
	if rule.SetDealCode != nil {
		update.DealCode = rule.SetDealCode
		stampMatch(&update, rule.Name, now)
	}

	return update
}

// applyDealLink stamps a resolved deal's linkage fields onto the update.
func applyDealLink(update *model.TransactionUpdate, link *model.DealLink, ruleName string, now time.Time) {
	dealCode := link.DealCode
	dealID := link.DealID
	update.DealCode = &dealCode
	update.MatchedDealID = &dealID
	stampMatch(update, ruleName, now)
}

// stampMatch records the audit trail for a deal linkage: status, the rule
// name that produced the match, and when it happened.
func stampMatch(update *model.TransactionUpdate, ruleName string, now time.Time) {
	status := model.MatchStatusAutoMatched
	name := ruleName
	matchedAt := now
	update.MatchStatus = &status
	update.MatchRule = &name
	update.MatchedAt = &matchedAt
}

// firstMatch returns the first rule in evaluation order that matches the
// transaction, or nil when none does. Rules must already be sorted by the
// store; the search never mutates its inputs.
func firstMatch(ruleSet []model.Rule, txn model.Transaction) *model.Rule {
	for i := range ruleSet {
		if ruleSet[i].Matches(txn) {
			return &ruleSet[i]
		}
	}
	return nil
}
