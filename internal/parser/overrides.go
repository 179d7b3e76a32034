package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// OverrideRule forces the polarity of a movement whose description and
// amount match its predicates. Empty predicates match everything; a rule
// with no predicate at all is rejected by compileOverrides.
type OverrideRule struct {
	Name      string              `yaml:"name"`
	Keywords  []string            `yaml:"keywords"` // any of, uppercase substring
	Pattern   string              `yaml:"pattern"`  // regex on the description
	Amount    *decimal.Decimal    `yaml:"amount"`   // exact magnitude
	MinAmount *decimal.Decimal    `yaml:"min_amount"`
	MaxAmount *decimal.Decimal    `yaml:"max_amount"`
	When      models.MovementType `yaml:"when"` // only when the heuristic chose this polarity
	Force     models.MovementType `yaml:"force"`
}

type compiledOverride struct {
	rule OverrideRule
	re   *regexp.Regexp
}

// compileOverrides validates rules and pre-compiles their patterns, keeping
// the configured order.
func compileOverrides(rules []OverrideRule) ([]compiledOverride, error) {
	out := make([]compiledOverride, 0, len(rules))
	for i, rule := range rules {
		if !rule.Force.Valid() {
			return nil, fmt.Errorf("override %d (%s): force must be CARGO or ABONO, got %q", i, rule.Name, rule.Force)
		}
		if rule.When != "" && !rule.When.Valid() {
			return nil, fmt.Errorf("override %d (%s): when must be CARGO or ABONO, got %q", i, rule.Name, rule.When)
		}
		if len(rule.Keywords) == 0 && rule.Pattern == "" && rule.Amount == nil &&
			rule.MinAmount == nil && rule.MaxAmount == nil {
			return nil, fmt.Errorf("override %d (%s): at least one predicate is required", i, rule.Name)
		}

		c := compiledOverride{rule: rule}
		if c.rule.Name == "" {
			c.rule.Name = fmt.Sprintf("override-%d", i)
		}
		c.rule.Keywords = make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			c.rule.Keywords[j] = strings.ToUpper(kw)
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("override %d (%s): %w", i, rule.Name, err)
			}
			c.re = re
		}
		out = append(out, c)
	}
	return out, nil
}

// applyOverrides returns the polarity forced by the first matching rule, or
// current when none matches.
func applyOverrides(rules []compiledOverride, desc string, magnitude decimal.Decimal, current models.MovementType) (models.MovementType, string) {
	for _, c := range rules {
		if c.matches(desc, magnitude, current) {
			return c.rule.Force, c.rule.Name
		}
	}
	return current, ""
}

func (c compiledOverride) matches(desc string, magnitude decimal.Decimal, current models.MovementType) bool {
	r := c.rule
	if r.When != "" && r.When != current {
		return false
	}
	if len(r.Keywords) > 0 && !containsAny(desc, r.Keywords) {
		return false
	}
	if c.re != nil && !c.re.MatchString(desc) {
		return false
	}
	if r.Amount != nil && !magnitude.Equal(r.Amount.Abs()) {
		return false
	}
	if r.MinAmount != nil && magnitude.LessThan(*r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && magnitude.GreaterThan(*r.MaxAmount) {
		return false
	}
	return true
}
