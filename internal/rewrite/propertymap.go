package rewrite

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lunalang/generics/internal/decl"
)

// PropertyBag collects the properties constraining one key: the protocols it
// conforms to, its layout, superclass and concrete type bounds, and the
// rules that introduced each. Substitution terms inside property symbols are
// stated relative to the bag's own key.
type PropertyBag struct {
	key *Term

	conformsTo      []string
	conformsToRules []int

	layout     decl.Layout
	hasLayout  bool
	layoutRule int

	superclass     *Symbol
	superclassRule int

	concreteType     *Symbol
	concreteTypeRule int
}

func (b *PropertyBag) Key() *Term           { return b.key }
func (b *PropertyBag) ConformsTo() []string { return b.conformsTo }

func (b *PropertyBag) HasLayout() bool { return b.hasLayout }
func (b *PropertyBag) Layout() decl.Layout {
	if !b.hasLayout {
		panic("property bag has no layout")
	}
	return b.layout
}

func (b *PropertyBag) HasSuperclassBound() bool { return b.superclass != nil }
func (b *PropertyBag) Superclass() *Symbol {
	if b.superclass == nil {
		panic("property bag has no superclass bound")
	}
	return b.superclass
}

func (b *PropertyBag) IsConcreteType() bool { return b.concreteType != nil }
func (b *PropertyBag) ConcreteType() *Symbol {
	if b.concreteType == nil {
		panic("property bag has no concrete type")
	}
	return b.concreteType
}

// copyPropertiesFrom seeds a new bag from the bag of its longest proper
// suffix. Property symbols carrying substitutions are re-rooted by
// prepending the prefix that distinguishes the two keys.
func (b *PropertyBag) copyPropertiesFrom(src *PropertyBag, prefix []*Symbol, ctx *Context) {
	b.conformsTo = append([]string(nil), src.conformsTo...)
	b.conformsToRules = append([]int(nil), src.conformsToRules...)

	b.layout = src.layout
	b.hasLayout = src.hasLayout
	b.layoutRule = src.layoutRule

	if src.superclass != nil {
		b.superclass = prependPrefix(ctx, src.superclass, prefix)
		b.superclassRule = src.superclassRule
	}
	if src.concreteType != nil {
		b.concreteType = prependPrefix(ctx, src.concreteType, prefix)
		b.concreteTypeRule = src.concreteTypeRule
	}
}

// prependPrefix re-roots a property symbol's substitution terms under the
// given prefix.
func prependPrefix(ctx *Context, symbol *Symbol, prefix []*Symbol) *Symbol {
	subs := symbol.Substitutions()
	if len(subs) == 0 {
		return symbol
	}
	newSubs := make([]*Term, len(subs))
	for i, sub := range subs {
		combined := append(append([]*Symbol(nil), prefix...), sub.Symbols()...)
		newSubs[i] = ctx.Term(combined...)
	}
	return ctx.WithSubstitutions(symbol, newSubs)
}

func (b *PropertyBag) String() string {
	var parts []string
	if len(b.conformsTo) > 0 {
		parts = append(parts, "conforms_to: ["+strings.Join(b.conformsTo, " ")+"]")
	}
	if b.hasLayout {
		parts = append(parts, "layout: "+b.layout.String())
	}
	if b.superclass != nil {
		parts = append(parts, "superclass: "+b.superclass.String())
	}
	if b.concreteType != nil {
		parts = append(parts, "concrete_type: "+b.concreteType.String())
	}
	return b.key.String() + " => { " + strings.Join(parts, ", ") + " }"
}

// PropertyMap maps each key to the merged properties its rules state.
// Merging can add induced rules to the system, so construction iterates with
// completion until a fixed point. Entries are rebuilt on every Build call;
// the processed-rule bookkeeping persists across rebuilds so each merge is
// performed once.
type PropertyMap struct {
	sys *System
	ctx *Context

	entries []*PropertyBag
	index   map[*Term]*PropertyBag

	checkedRules     map[int]bool
	checkedRulePairs map[[2]int]bool

	// Conformances resolved during nested type concretization, keyed by
	// (concrete rule, conformance rule).
	concreteConformances map[[2]int]*decl.Conformance

	lowering ConditionalLowering
}

// NewPropertyMap builds an empty map over the given system. lowering may be
// nil, in which case conditional requirement inference is skipped.
func NewPropertyMap(sys *System, lowering ConditionalLowering) *PropertyMap {
	return &PropertyMap{
		sys:                  sys,
		ctx:                  sys.ctx,
		index:                map[*Term]*PropertyBag{},
		checkedRules:         map[int]bool{},
		checkedRulePairs:     map[[2]int]bool{},
		concreteConformances: map[[2]int]*decl.Conformance{},
		lowering:             lowering,
	}
}

func (m *PropertyMap) Entries() []*PropertyBag { return m.entries }

// checkRuleOnce reports whether ruleID has not been processed before.
func (m *PropertyMap) checkRuleOnce(ruleID int) bool {
	if m.checkedRules[ruleID] {
		return false
	}
	m.checkedRules[ruleID] = true
	return true
}

// checkRulePairOnce reports whether the ordered pair has not been processed
// before.
func (m *PropertyMap) checkRulePairOnce(firstRuleID, secondRuleID int) bool {
	pair := [2]int{firstRuleID, secondRuleID}
	if m.checkedRulePairs[pair] {
		return false
	}
	m.checkedRulePairs[pair] = true
	return true
}

// Build clears the entries and reconstructs the map from the current rule
// set, merging the properties of each key. Returns the number of rules the
// merging added; callers iterate completion and Build until this reaches
// zero.
func (m *PropertyMap) Build() int {
	before := m.sys.RuleCount()

	m.entries = nil
	m.index = map[*Term]*PropertyBag{}

	type propertyRule struct {
		ruleID   int
		key      *Term
		property *Symbol
	}
	var props []propertyRule
	for ruleID := range m.sys.rules {
		rule := &m.sys.rules[ruleID]
		if rule.lhsSimplified || rule.rhsSimplified || rule.substitutionSimplified {
			continue
		}
		if rule.ContainsUnresolvedSymbols() {
			continue
		}
		property := rule.PropertySymbol()
		if property == nil {
			continue
		}
		props = append(props, propertyRule{ruleID: ruleID, key: rule.rhs, property: property})
	}

	// Process keys in increasing term order, so that a key's suffixes are
	// entered before the key itself.
	sort.SliceStable(props, func(i, j int) bool {
		result, ok := props[i].key.Mutable().Compare(props[j].key.Mutable(), m.ctx)
		if !ok {
			return props[i].key.String() < props[j].key.String()
		}
		return result < 0
	})

	for _, pr := range props {
		m.addProperty(pr.key, pr.property, pr.ruleID)
	}

	m.checkConcreteTypeRequirements()
	m.concretizeNestedTypesFromConcreteParents()

	return m.sys.RuleCount() - before
}

func (m *PropertyMap) getOrCreateProperties(key *Term) *PropertyBag {
	if bag, ok := m.index[key]; ok {
		return bag
	}

	bag := &PropertyBag{key: key}

	// Inherit the properties of the longest proper suffix already entered.
	for i := 1; i < key.Len(); i++ {
		suffix := m.ctx.Term(key.Symbols()[i:]...)
		if src, ok := m.index[suffix]; ok {
			bag.copyPropertiesFrom(src, key.Symbols()[:i], m.ctx)
			break
		}
	}

	m.entries = append(m.entries, bag)
	m.index[key] = bag
	return bag
}

// LookupProperties returns the bag of the longest suffix of the given
// symbols that has one, or nil. Substitution terms in the returned bag are
// relative to the bag's own key, not to the queried term.
func (m *PropertyMap) LookupProperties(symbols []*Symbol) *PropertyBag {
	for i := 0; i < len(symbols); i++ {
		if bag, ok := m.index[m.ctx.Term(symbols[i:]...)]; ok {
			return bag
		}
	}
	return nil
}

// addProperty merges one property rule into the bag of its key. Keys arrive
// in monotonically non-decreasing order.
func (m *PropertyMap) addProperty(key *Term, property *Symbol, ruleID int) {
	if !property.IsProperty() {
		panic(fmt.Sprintf("not a property symbol: %s", property))
	}

	switch property.Kind() {
	case SymbolProtocol:
		bag := m.getOrCreateProperties(key)
		bag.conformsTo = append(bag.conformsTo, property.Protocol())
		bag.conformsToRules = append(bag.conformsToRules, ruleID)

	case SymbolLayout:
		m.addLayoutProperty(key, property, ruleID)

	case SymbolSuperclass:
		m.addSuperclassProperty(key, property, ruleID)

	case SymbolConcreteType:
		m.addConcreteTypeProperty(key, property, ruleID)

	case SymbolConcreteConformance:
		// Concrete conformance rules carry no information the map needs;
		// unification never merges them.
	}
}

// Dump writes the entries in key order.
func (m *PropertyMap) Dump(w io.Writer) {
	fmt.Fprintln(w, "Property map: {")
	for _, bag := range m.entries {
		fmt.Fprintf(w, "  %s\n", bag)
	}
	fmt.Fprintln(w, "}")
}
