package match

import (
	"strings"

	"github.com/Valecer/market-sub000/internal/util"
)

// Classifier maps an item name (plus an optional supplier hint) to a coarse
// category key used for candidate blocking.
type Classifier interface {
	Classify(name, hint string) (string, bool)
}

type MatcherKind string

const (
	// MatcherKeyword matches a normalized substring of the item name.
	MatcherKeyword MatcherKind = "keyword"
	// MatcherBrand matches a whole token.
	MatcherBrand MatcherKind = "brand"
)

type RuleMatcher struct {
	Kind  MatcherKind
	Value string
}

// CategoryRule pairs a category key with an ordered list of matchers. Rules
// are evaluated in order; the first hit wins.
type CategoryRule struct {
	Key      string
	Matchers []RuleMatcher
}

// RuleClassifier evaluates an immutable rule table loaded once at startup.
type RuleClassifier struct {
	rules []CategoryRule
	keys  map[string]struct{}
}

func NewRuleClassifier(rules []CategoryRule) *RuleClassifier {
	keys := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		keys[r.Key] = struct{}{}
	}
	return &RuleClassifier{rules: rules, keys: keys}
}

func (c *RuleClassifier) Classify(name, hint string) (string, bool) {
	if hint != "" {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(hint), " ", "_"))
		if _, ok := c.keys[key]; ok {
			return key, true
		}
	}

	norm := util.Normalize(name)
	tokens := map[string]struct{}{}
	for _, t := range util.Tokenize(name) {
		tokens[t] = struct{}{}
	}

	for _, rule := range c.rules {
		for _, m := range rule.Matchers {
			value := util.Normalize(m.Value)
			switch m.Kind {
			case MatcherBrand:
				if _, ok := tokens[value]; ok {
					return rule.Key, true
				}
			default:
				if value != "" && strings.Contains(norm, value) {
					return rule.Key, true
				}
			}
		}
	}
	return "", false
}

// DefaultRules covers the categories the catalog currently carries.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Key: "smartphones", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "smartphone"},
			{Kind: MatcherKeyword, Value: "galaxy"},
			{Kind: MatcherKeyword, Value: "iphone"},
			{Kind: MatcherKeyword, Value: "redmi"},
			{Kind: MatcherBrand, Value: "pixel"},
		}},
		{Key: "electric_scooters", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "scooter"},
			{Kind: MatcherKeyword, Value: "kickscooter"},
		}},
		{Key: "electric_bikes", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "e-bike"},
			{Kind: MatcherKeyword, Value: "ebike"},
			{Kind: MatcherKeyword, Value: "electric bike"},
		}},
		{Key: "power_tools", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "drill"},
			{Kind: MatcherKeyword, Value: "grinder"},
			{Kind: MatcherKeyword, Value: "screwdriver"},
			{Kind: MatcherBrand, Value: "bosch"},
			{Kind: MatcherBrand, Value: "makita"},
		}},
		{Key: "laptops", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "laptop"},
			{Kind: MatcherKeyword, Value: "notebook"},
			{Kind: MatcherKeyword, Value: "macbook"},
		}},
		{Key: "appliances", Matchers: []RuleMatcher{
			{Kind: MatcherKeyword, Value: "fridge"},
			{Kind: MatcherKeyword, Value: "refrigerator"},
			{Kind: MatcherKeyword, Value: "washing machine"},
			{Kind: MatcherKeyword, Value: "dishwasher"},
		}},
	}
}
