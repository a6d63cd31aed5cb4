// Package model defines the core data structures for the tally application.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tallyworks/tally/internal/common"
)

// MerchantMatchType controls how a rule's merchant text is compared against
// a transaction's effective merchant name.
type MerchantMatchType string

// Merchant match type constants.
const (
	MatchContains   MerchantMatchType = "contains"
	MatchExact      MerchantMatchType = "exact"
	MatchStartsWith MerchantMatchType = "starts_with"
)

// AmountOperator represents the type of amount comparison.
type AmountOperator string

// Amount operator constants.
const (
	AmountEqual       AmountOperator = "eq"
	AmountGreaterThan AmountOperator = "gt"
	AmountLessThan    AmountOperator = "lt"
	AmountBetween     AmountOperator = "between"
)

// Rule represents a tenant-scoped rule for matching transactions and applying
// categorization, merchant normalization, tagging, and deal-linkage effects.
// All criteria and action fields are optional; a nil pointer means the field
// imposes no constraint (criteria) or no effect (actions).
type Rule struct {
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	MerchantMatch     *string            `json:"merchant_match,omitempty"`
	MerchantMatchType MerchantMatchType  `json:"merchant_match_type"`
	AmountOperator    *AmountOperator    `json:"amount_operator,omitempty"`
	AmountValue       *float64           `json:"amount_value,omitempty"`
	AmountValueMax    *float64           `json:"amount_value_max,omitempty"`
	AccountID         *string            `json:"account_id,omitempty"`
	DateStart         *time.Time         `json:"date_start,omitempty"`
	DateEnd           *time.Time         `json:"date_end,omitempty"`
	SetCategorySlug   *string            `json:"set_category_slug,omitempty"`
	SetMerchantName   *string            `json:"set_merchant_name,omitempty"`
	SetExcluded       *bool              `json:"set_excluded,omitempty"`
	SetAssignedID     *string            `json:"set_assigned_id,omitempty"`
	SetDealCode       *string            `json:"set_deal_code,omitempty"`
	AddTagIDs         []string           `json:"add_tag_ids,omitempty"`
	ID                string             `json:"id"`
	TeamID            string             `json:"team_id"`
	Name              string             `json:"name"`
	Priority          int                `json:"priority"`
	Enabled           bool               `json:"enabled"`
	AutoResolveDeal   bool               `json:"auto_resolve_deal"`
}

// Matches determines whether a transaction satisfies every criterion present
// on the rule. Absent criteria impose no constraint, so a rule with no
// criteria at all matches every transaction (a low-priority catch-all).
func (r *Rule) Matches(txn Transaction) bool {
	if !r.matchesMerchant(txn) {
		return false
	}
	if !r.matchesAmount(txn) {
		return false
	}
	if r.AccountID != nil && txn.BankAccountID != *r.AccountID {
		return false
	}
	if r.DateStart != nil && txn.Date.Before(*r.DateStart) {
		return false
	}
	if r.DateEnd != nil && txn.Date.After(*r.DateEnd) {
		return false
	}
	return true
}

// matchesMerchant compares the rule's merchant text against the transaction's
// effective merchant name, case-insensitively.
func (r *Rule) matchesMerchant(txn Transaction) bool {
	if r.MerchantMatch == nil {
		return true
	}

	target := strings.ToLower(txn.EffectiveMerchant())
	needle := strings.ToLower(*r.MerchantMatch)

	switch r.MerchantMatchType {
	case MatchExact:
		return target == needle
	case MatchStartsWith:
		return strings.HasPrefix(target, needle)
	default:
		// Unrecognized stored values fall back to contains, matching the
		// column default existing data was written with.
		return strings.Contains(target, needle)
	}
}

// matchesAmount compares transaction amount magnitudes, ignoring sign on both
// sides so that debit/credit conventions don't affect rule authoring.
func (r *Rule) matchesAmount(txn Transaction) bool {
	if r.AmountOperator == nil || r.AmountValue == nil {
		return true
	}

	amt := math.Abs(txn.Amount)
	val := math.Abs(*r.AmountValue)

	switch *r.AmountOperator {
	case AmountEqual:
		return amt == val
	case AmountGreaterThan:
		return amt > val
	case AmountLessThan:
		return amt < val
	case AmountBetween:
		if r.AmountValueMax == nil {
			return false
		}
		return val <= amt && amt <= math.Abs(*r.AmountValueMax)
	}

	return false
}

// Validate ensures the rule definition is well formed.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidRule)
	}

	switch r.MerchantMatchType {
	case MatchContains, MatchExact, MatchStartsWith:
	default:
		return fmt.Errorf("%w: unknown merchant match type %q", common.ErrInvalidRule, r.MerchantMatchType)
	}

	if r.AmountOperator != nil {
		switch *r.AmountOperator {
		case AmountEqual, AmountGreaterThan, AmountLessThan:
			if r.AmountValue == nil {
				return fmt.Errorf("%w: amount_value required for operator %s", common.ErrInvalidRule, *r.AmountOperator)
			}
		case AmountBetween:
			if r.AmountValue == nil || r.AmountValueMax == nil {
				return fmt.Errorf("%w: amount_value and amount_value_max required for between operator", common.ErrInvalidRule)
			}
			if math.Abs(*r.AmountValue) > math.Abs(*r.AmountValueMax) {
				return fmt.Errorf("%w: amount_value must be less than or equal to amount_value_max", common.ErrInvalidRule)
			}
		default:
			return fmt.Errorf("%w: unknown amount operator %q", common.ErrInvalidRule, *r.AmountOperator)
		}
	}

	if r.DateStart != nil && r.DateEnd != nil && r.DateStart.After(*r.DateEnd) {
		return fmt.Errorf("%w: date_start must be before or equal to date_end", common.ErrInvalidRule)
	}

	return nil
}

// RuleUpdate describes a partial update to a rule. Nil fields are left
// unchanged.
type RuleUpdate struct {
	Name              *string
	Enabled           *bool
	Priority          *int
	MerchantMatch     *string
	MerchantMatchType *MerchantMatchType
	AmountOperator    *AmountOperator
	AmountValue       *float64
	AmountValueMax    *float64
	AccountID         *string
	DateStart         *time.Time
	DateEnd           *time.Time
	SetCategorySlug   *string
	SetMerchantName   *string
	SetExcluded       *bool
	SetAssignedID     *string
	SetDealCode       *string
	AddTagIDs         []string
	AutoResolveDeal   *bool
}

// ApplyTo copies the update's present fields onto the rule.
func (u RuleUpdate) ApplyTo(r *Rule) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Enabled != nil {
		r.Enabled = *u.Enabled
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.MerchantMatch != nil {
		r.MerchantMatch = u.MerchantMatch
	}
	if u.MerchantMatchType != nil {
		r.MerchantMatchType = *u.MerchantMatchType
	}
	if u.AmountOperator != nil {
		r.AmountOperator = u.AmountOperator
	}
	if u.AmountValue != nil {
		r.AmountValue = u.AmountValue
	}
	if u.AmountValueMax != nil {
		r.AmountValueMax = u.AmountValueMax
	}
	if u.AccountID != nil {
		r.AccountID = u.AccountID
	}
	if u.DateStart != nil {
		r.DateStart = u.DateStart
	}
	if u.DateEnd != nil {
		r.DateEnd = u.DateEnd
	}
	if u.SetCategorySlug != nil {
		r.SetCategorySlug = u.SetCategorySlug
	}
	if u.SetMerchantName != nil {
		r.SetMerchantName = u.SetMerchantName
	}
	if u.SetExcluded != nil {
		r.SetExcluded = u.SetExcluded
	}
	if u.SetAssignedID != nil {
		r.SetAssignedID = u.SetAssignedID
	}
	if u.SetDealCode != nil {
		r.SetDealCode = u.SetDealCode
	}
	if u.AddTagIDs != nil {
		r.AddTagIDs = u.AddTagIDs
	}
	if u.AutoResolveDeal != nil {
		r.AutoResolveDeal = *u.AutoResolveDeal
	}
}
