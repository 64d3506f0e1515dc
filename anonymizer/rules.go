package anonymizer

import (
	"github.com/andys/unlscrub/config"
)

// ScrubRule replaces the named fields of a table with synthesized values.
type ScrubRule struct {
	Table  string
	Fields []string
	Style  string
}

// StandardizeRule forces every target field to one fixed value.
type StandardizeRule struct {
	Name    string // address, phone or email
	Value   string
	Targets []config.TableField
}

// CombineSource is one input of a combine rule. With a Style the value is
// synthesized, otherwise the field's current value is read.
type CombineSource struct {
	Field string
	Style string
}

// CombineRule joins its sources, in order, into the target field.
type CombineRule struct {
	Table     string
	Sources   []CombineSource
	Separator string
	Target    string
}

// RuleSet is the full, immutable set of rules for a run.
type RuleSet struct {
	Scrub       []ScrubRule
	Standardize []StandardizeRule
	Combine     []CombineRule
}

// RulesFromConfig converts the configuration's rule sections. Standardize
// groups keep the fixed address, phone, email order.
func RulesFromConfig(cfg *config.Config) RuleSet {
	var rules RuleSet

	for _, rn := range cfg.Scrubbing.RandomNames {
		rules.Scrub = append(rules.Scrub, ScrubRule{
			Table:  rn.Table,
			Fields: rn.Fields,
			Style:  rn.Style,
		})
	}

	rules.Standardize = []StandardizeRule{
		{Name: "address", Value: cfg.Standardize.Address.Value, Targets: cfg.Standardize.Address.Fields},
		{Name: "phone", Value: cfg.Standardize.Phone.Value, Targets: cfg.Standardize.Phone.Fields},
		{Name: "email", Value: cfg.Standardize.Email.Value, Targets: cfg.Standardize.Email.Fields},
	}

	for _, cf := range cfg.CombinationFields {
		combo := CombineRule{
			Table:     cf.Table,
			Separator: cf.Separator,
			Target:    cf.TargetField,
		}
		for _, src := range cf.Fields {
			combo.Sources = append(combo.Sources, CombineSource{Field: src.SourceField, Style: src.RandomStyle})
		}
		rules.Combine = append(rules.Combine, combo)
	}

	return rules
}

// styles returns every synthesis style the rule set asks for
func (rs RuleSet) styles() []string {
	var styles []string
	for _, r := range rs.Scrub {
		styles = append(styles, r.Style)
	}
	for _, r := range rs.Combine {
		for _, src := range r.Sources {
			if src.Style != "" {
				styles = append(styles, src.Style)
			}
		}
	}
	return styles
}
