package rewrite

import (
	"strings"

	"github.com/lunalang/generics/internal/types"
)

// Rule is an oriented rewrite rule replacing occurrences of LHS with RHS,
// where LHS is greater than RHS in the term order. Rules are appended to
// their rewrite system and never removed; the flag bits below are the only
// form of deletion, so rule indices stay stable for the lifetime of the
// system.
type Rule struct {
	lhs *Term
	rhs *Term

	// A permanent rule does not correspond to a requirement and cannot be
	// deleted by minimization; it is re-added whenever a rewrite system is
	// built.
	permanent bool

	// An explicit rule lowers a requirement written by the user.
	explicit bool

	lhsSimplified          bool
	rhsSimplified          bool
	substitutionSimplified bool

	// A redundant rule was eliminated by minimization. It still participates
	// in rewriting but is not part of the minimal requirement set.
	redundant bool

	// A conflicting rule is a property rule that no concrete type can
	// satisfy because it is mutually exclusive with another rule.
	conflicting bool
}

func (r *Rule) LHS() *Term { return r.lhs }
func (r *Rule) RHS() *Term { return r.rhs }

func (r *Rule) IsPermanent() bool              { return r.permanent }
func (r *Rule) IsExplicit() bool               { return r.explicit }
func (r *Rule) IsLHSSimplified() bool          { return r.lhsSimplified }
func (r *Rule) IsRHSSimplified() bool          { return r.rhsSimplified }
func (r *Rule) IsSubstitutionSimplified() bool { return r.substitutionSimplified }
func (r *Rule) IsRedundant() bool              { return r.redundant }
func (r *Rule) IsConflicting() bool            { return r.conflicting }

func (r *Rule) ContainsUnresolvedSymbols() bool {
	return r.lhs.ContainsUnresolvedSymbols() || r.rhs.ContainsUnresolvedSymbols()
}

func (r *Rule) markLHSSimplified() {
	if r.lhsSimplified {
		panic("rule already LHS-simplified")
	}
	r.lhsSimplified = true
}

func (r *Rule) markRHSSimplified() {
	if r.rhsSimplified {
		panic("rule already RHS-simplified")
	}
	r.rhsSimplified = true
}

func (r *Rule) markSubstitutionSimplified() {
	if r.substitutionSimplified {
		panic("rule already substitution-simplified")
	}
	r.substitutionSimplified = true
}

func (r *Rule) markPermanent() {
	if r.explicit || r.permanent {
		panic("permanent and explicit are mutually exclusive")
	}
	r.permanent = true
}

func (r *Rule) markExplicit() {
	if r.explicit || r.permanent {
		panic("permanent and explicit are mutually exclusive")
	}
	r.explicit = true
}

func (r *Rule) markRedundant() {
	if r.redundant {
		panic("rule already redundant")
	}
	r.redundant = true
}

func (r *Rule) markConflicting() {
	// Marking a rule conflicting twice is fine; marking a permanent rule
	// conflicting is not.
	if r.permanent {
		panic("permanent rule cannot conflict")
	}
	r.conflicting = true
}

// PropertySymbol returns the property symbol of a rule of the form
// T.[p] => T, and nil for any other shape. Meaningful on a simplified
// system, where right hand sides are canonical.
func (r *Rule) PropertySymbol() *Symbol {
	property := r.lhs.Back()
	if !property.IsProperty() {
		return nil
	}
	if r.lhs.Len()-1 != r.rhs.Len() {
		return nil
	}
	if !symbolsEqual(r.rhs.Symbols(), r.lhs.Symbols()[:r.rhs.Len()]) {
		return nil
	}
	return property
}

// ProtocolConformance returns P for a rule of the form T.[P] => T.
func (r *Rule) ProtocolConformance() (string, bool) {
	if p := r.PropertySymbol(); p != nil && p.kind == SymbolProtocol {
		return p.name, true
	}
	return "", false
}

// AnyConformance returns P for a rule of the form T.[P] => T or
// T.[concrete: C : P] => T.
func (r *Rule) AnyConformance() (string, bool) {
	if p := r.PropertySymbol(); p != nil {
		switch p.kind {
		case SymbolProtocol, SymbolConcreteConformance:
			return p.name, true
		}
	}
	return "", false
}

// IsIdentityConformance reports a rule of the form [P].[P] => [P].
func (r *Rule) IsIdentityConformance() bool {
	return r.lhs.Len() == 2 &&
		r.rhs.Len() == 1 &&
		r.lhs.At(0) == r.rhs.At(0) &&
		r.lhs.At(0) == r.lhs.At(1) &&
		r.lhs.At(0).kind == SymbolProtocol
}

// IsProtocolRefinement reports a rule of the form [P].[Q] => [P] arising
// from a directly-stated inheritance clause entry. Such rules can only
// become redundant through other refinement rules, so minimal conformance
// computation anchors on them.
func (r *Rule) IsProtocolRefinement(ctx *Context) bool {
	if r.lhs.Len() == 2 &&
		r.rhs.Len() == 1 &&
		r.lhs.At(0) == r.rhs.At(0) &&
		r.lhs.At(0).kind == SymbolProtocol &&
		(r.lhs.At(1).kind == SymbolProtocol ||
			r.lhs.At(1).kind == SymbolConcreteConformance) &&
		r.lhs.At(0) != r.lhs.At(1) {
		proto, ok := ctx.registry.Protocol(r.lhs.At(0).name)
		if !ok {
			return false
		}
		for _, inherited := range proto.Inherits {
			if inherited == r.lhs.At(1).name {
				return true
			}
		}
	}
	return false
}

// Depth is the length of the left hand side, or of its longest substitution
// term if that is longer. Completion bounds rule depth with it.
func (r *Rule) Depth() int {
	depth := r.lhs.Len()
	if back := r.lhs.Back(); back.HasSubstitutions() {
		for _, sub := range back.Substitutions() {
			if sub.Len() > depth {
				depth = sub.Len()
			}
		}
	}
	return depth
}

// Nesting is the structural depth of the concrete type at the end of the
// left hand side, or 0 when there is none.
func (r *Rule) Nesting() int {
	if back := r.lhs.Back(); back.HasSubstitutions() {
		return types.NestingDepth(back.ConcreteType())
	}
	return 0
}

// Compare orders rules by left hand side, then right hand side.
func (r *Rule) Compare(other *Rule, ctx *Context) (int, bool) {
	result, ok := r.lhs.Mutable().Compare(other.lhs.Mutable(), ctx)
	if !ok || result != 0 {
		return result, ok
	}
	return r.rhs.Mutable().Compare(other.rhs.Mutable(), ctx)
}

func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString(r.lhs.String())
	b.WriteString(" => ")
	b.WriteString(r.rhs.String())
	if r.permanent {
		b.WriteString(" [permanent]")
	}
	if r.explicit {
		b.WriteString(" [explicit]")
	}
	if r.lhsSimplified {
		b.WriteString(" [lhs↓]")
	}
	if r.rhsSimplified {
		b.WriteString(" [rhs↓]")
	}
	if r.substitutionSimplified {
		b.WriteString(" [subst↓]")
	}
	if r.redundant {
		b.WriteString(" [redundant]")
	}
	if r.conflicting {
		b.WriteString(" [conflicting]")
	}
	return b.String()
}
