package anonymizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andys/unlscrub/db"
	"github.com/andys/unlscrub/unl"
)

// FieldResolutionError reports a table with no schema in the catalog.
type FieldResolutionError struct {
	Table string
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("table '%s' not found", e.Table)
}

// Reference is a rule's mention of a table field.
type Reference struct {
	Rule  string
	Table string
	Field string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s rule: %s.%s", r.Rule, r.Table, r.Field)
}

// Engine applies a rule set to records, resolving field names through the
// schema catalog. It holds no mutable state and may be shared by workers.
type Engine struct {
	catalog    db.Catalog
	rules      RuleSet
	unresolved []Reference
}

// NewEngine validates the rule set against the catalog. Unsupported styles
// are always a ConfigError; unresolved field references are one only when
// strict is set, and are otherwise reported by Unresolved.
func NewEngine(catalog db.Catalog, rules RuleSet, strict bool) (*Engine, error) {
	for _, style := range rules.styles() {
		if err := ValidateStyle(style); err != nil {
			return nil, err
		}
	}

	e := &Engine{catalog: catalog, rules: rules}
	e.unresolved = e.checkReferences()
	if strict && len(e.unresolved) > 0 {
		refs := make([]string, len(e.unresolved))
		for i, ref := range e.unresolved {
			refs[i] = ref.String()
		}
		return nil, &ConfigError{Msg: "unresolved field references: " + strings.Join(refs, ", ")}
	}
	return e, nil
}

// Unresolved lists rule references that name a table or field missing from
// the catalog. They are skipped when records are processed.
func (e *Engine) Unresolved() []Reference {
	return e.unresolved
}

func (e *Engine) checkReferences() []Reference {
	var missing []Reference
	check := func(rule, table, field string) {
		s, ok := e.catalog.Lookup(table)
		if !ok {
			missing = append(missing, Reference{Rule: rule, Table: table, Field: field})
			return
		}
		if _, ok := s.FieldIndex(field); !ok {
			missing = append(missing, Reference{Rule: rule, Table: table, Field: field})
		}
	}

	for _, r := range e.rules.Scrub {
		for _, f := range r.Fields {
			check("scrub", r.Table, f)
		}
	}
	for _, r := range e.rules.Standardize {
		for _, t := range r.Targets {
			check("standardize "+r.Name, t.Table, t.Field)
		}
	}
	for _, r := range e.rules.Combine {
		for _, src := range r.Sources {
			check("combine", r.Table, src.Field)
		}
		check("combine", r.Table, r.Target)
	}

	sort.SliceStable(missing, func(i, j int) bool {
		if missing[i].Table != missing[j].Table {
			return missing[i].Table < missing[j].Table
		}
		return missing[i].Field < missing[j].Field
	})
	return missing
}

type fieldOp struct {
	field string
	index int
	style string // scrub only
	value string // standardize only
}

type combineOp struct {
	sources   []fieldOp
	separator string
	target    fieldOp
}

// TablePlan is the rule set resolved to field positions for one table.
type TablePlan struct {
	Table       string
	scrub       []fieldOp
	standardize []fieldOp
	combine     []combineOp
}

// Plan resolves every rule that applies to table. Names missing from the
// table's schema are dropped here, so Apply never looks names up.
func (e *Engine) Plan(table string) (*TablePlan, error) {
	schema, ok := e.catalog.Lookup(table)
	if !ok {
		return nil, &FieldResolutionError{Table: table}
	}
	plan := &TablePlan{Table: table}

	for _, r := range e.rules.Scrub {
		if r.Table != table {
			continue
		}
		for _, field := range r.Fields {
			if idx, ok := schema.FieldIndex(field); ok {
				plan.scrub = append(plan.scrub, fieldOp{field: field, index: idx, style: r.Style})
			}
		}
	}

	for _, r := range e.rules.Standardize {
		for _, target := range r.Targets {
			if target.Table != table {
				continue
			}
			if idx, ok := schema.FieldIndex(target.Field); ok {
				plan.standardize = append(plan.standardize, fieldOp{field: target.Field, index: idx, value: r.Value})
			}
		}
	}

	for _, r := range e.rules.Combine {
		if r.Table != table {
			continue
		}
		targetIdx, ok := schema.FieldIndex(r.Target)
		if !ok {
			continue
		}
		op := combineOp{
			separator: r.Separator,
			target:    fieldOp{field: r.Target, index: targetIdx},
		}
		for _, src := range r.Sources {
			if idx, ok := schema.FieldIndex(src.Field); ok {
				op.sources = append(op.sources, fieldOp{field: src.Field, index: idx, style: src.Style})
			}
		}
		plan.combine = append(plan.combine, op)
	}

	return plan, nil
}

// Empty reports whether no rule touches the table
func (p *TablePlan) Empty() bool {
	return len(p.scrub) == 0 && len(p.standardize) == 0 && len(p.combine) == 0
}

// Apply mutates rec in place: scrub, then standardize, then combine. Combine
// sources read the values left by the earlier stages.
func (p *TablePlan) Apply(rec *unl.Record, names Namer) error {
	for _, op := range p.scrub {
		name, err := names.Name(op.style)
		if err != nil {
			return fmt.Errorf("scrub %s.%s: %w", p.Table, op.field, err)
		}
		if err := rec.Set(op.index, name); err != nil {
			return fmt.Errorf("scrub %s.%s: %w", p.Table, op.field, err)
		}
	}

	for _, op := range p.standardize {
		if err := rec.Set(op.index, op.value); err != nil {
			return fmt.Errorf("standardize %s.%s: %w", p.Table, op.field, err)
		}
	}

	for _, op := range p.combine {
		values := make([]string, 0, len(op.sources))
		for _, src := range op.sources {
			var value string
			var err error
			if src.style != "" {
				value, err = names.Name(src.style)
			} else {
				value, err = rec.Get(src.index)
			}
			if err != nil {
				return fmt.Errorf("combine %s.%s: %w", p.Table, src.field, err)
			}
			values = append(values, value)
		}
		if err := rec.Set(op.target.index, strings.Join(values, op.separator)); err != nil {
			return fmt.Errorf("combine %s.%s: %w", p.Table, op.target.field, err)
		}
	}

	return nil
}

// ApplyAll resolves the rules for table and applies them to rec. Workers
// processing many records should call Plan once and reuse it instead.
func (e *Engine) ApplyAll(table string, rec *unl.Record, names Namer) error {
	plan, err := e.Plan(table)
	if err != nil {
		return err
	}
	return plan.Apply(rec, names)
}
