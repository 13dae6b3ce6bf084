package rewrite

import (
	"fmt"
	"strings"

	"github.com/lunalang/generics/internal/types"
)

// TypeDifference describes how one concrete type symbol maps onto the meet
// of itself and another: which of its substitutions are equated with
// substitutions of the meet, and which are fixed to concrete types.
type TypeDifference struct {
	// LHS is the original symbol and RHS the meet. When the two coincide no
	// difference is recorded at all.
	LHS *Symbol
	RHS *Symbol

	// SameTypes pairs a substitution index of LHS with the substitution
	// index of RHS carrying the equated term.
	SameTypes [][2]int

	// ConcreteTypes pairs a substitution index of LHS with the concrete
	// type symbol it is fixed to.
	ConcreteTypes []ConcreteMismatch
}

// ConcreteMismatch fixes the substitution at Index to the concrete type
// described by Symbol.
type ConcreteMismatch struct {
	Index  int
	Symbol *Symbol
}

func (d *TypeDifference) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s => %s", d.LHS, d.RHS)
	for _, pair := range d.SameTypes {
		fmt.Fprintf(&b, "; σ_%d == σ_%d", pair[0], pair[1])
	}
	for _, mismatch := range d.ConcreteTypes {
		fmt.Fprintf(&b, "; σ_%d == %s", mismatch.Index, mismatch.Symbol)
	}
	return b.String()
}

// typeMeet walks two schema types in parallel, building the schema of their
// meet and the difference records mapping each side onto it.
type typeMeet struct {
	ctx              *Context
	lhsSubs, rhsSubs []*Term

	meetSubs []*Term

	lhsSame, rhsSame         [][2]int
	lhsConcrete, rhsConcrete []ConcreteMismatch

	conflict bool
}

func (m *typeMeet) match(l, r types.Type) types.Type {
	lAbstract := isSchemaTypeParameter(l)
	rAbstract := isSchemaTypeParameter(r)

	switch {
	case lAbstract && rAbstract:
		// Both positions are type parameters. The meet keeps the smaller of
		// the two terms; the other side is equated with it.
		lp := l.(types.Placeholder)
		rp := r.(types.Placeholder)
		lhsTerm := m.lhsSubs[lp.Index]
		rhsTerm := m.rhsSubs[rp.Index]

		chosen := lhsTerm
		if lhsTerm != rhsTerm {
			result, ok := lhsTerm.Mutable().Compare(rhsTerm.Mutable(), m.ctx)
			if !ok {
				panic(fmt.Sprintf("incomparable substitution terms: %s vs %s",
					lhsTerm, rhsTerm))
			}
			if result > 0 {
				chosen = rhsTerm
			}
		}

		index := len(m.meetSubs)
		m.meetSubs = append(m.meetSubs, chosen)
		if chosen != lhsTerm {
			m.lhsSame = append(m.lhsSame, [2]int{lp.Index, index})
		}
		if chosen != rhsTerm {
			m.rhsSame = append(m.rhsSame, [2]int{rp.Index, index})
		}
		return types.Placeholder{Index: index}

	case lAbstract:
		// The right hand side is more concrete; it wins the position and the
		// left substitution is fixed to it.
		lp := l.(types.Placeholder)
		schema, subs := m.ctx.RelativeSchemaForType(r, m.rhsSubs)
		m.lhsConcrete = append(m.lhsConcrete, ConcreteMismatch{
			Index:  lp.Index,
			Symbol: m.ctx.ConcreteTypeSymbol(schema, subs),
		})
		return m.reindexIntoMeet(r, m.rhsSubs)

	case rAbstract:
		rp := r.(types.Placeholder)
		schema, subs := m.ctx.RelativeSchemaForType(l, m.lhsSubs)
		m.rhsConcrete = append(m.rhsConcrete, ConcreteMismatch{
			Index:  rp.Index,
			Symbol: m.ctx.ConcreteTypeSymbol(schema, subs),
		})
		return m.reindexIntoMeet(l, m.lhsSubs)
	}

	switch lt := l.(type) {
	case types.Nominal:
		rt, ok := r.(types.Nominal)
		if !ok || lt.Name != rt.Name || len(lt.Args) != len(rt.Args) {
			m.conflict = true
			return l
		}
		args := make([]types.Type, len(lt.Args))
		for i := range lt.Args {
			args[i] = m.match(lt.Args[i], rt.Args[i])
		}
		return types.Nominal{Name: lt.Name, Args: args}

	case types.Tuple:
		rt, ok := r.(types.Tuple)
		if !ok || len(lt.Elements) != len(rt.Elements) {
			m.conflict = true
			return l
		}
		elems := make([]types.Type, len(lt.Elements))
		for i := range lt.Elements {
			elems[i] = m.match(lt.Elements[i], rt.Elements[i])
		}
		return types.Tuple{Elements: elems}

	case types.Func:
		rt, ok := r.(types.Func)
		if !ok || len(lt.Params) != len(rt.Params) {
			m.conflict = true
			return l
		}
		params := make([]types.Type, len(lt.Params))
		for i := range lt.Params {
			params[i] = m.match(lt.Params[i], rt.Params[i])
		}
		return types.Func{Params: params, Result: m.match(lt.Result, rt.Result)}
	}

	if !types.Equal(l, r) {
		m.conflict = true
	}
	return l
}

// reindexIntoMeet carries a winning fragment from one side into the meet,
// renumbering its placeholders over the meet's substitution array.
func (m *typeMeet) reindexIntoMeet(t types.Type, subs []*Term) types.Type {
	return types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if !isSchemaTypeParameter(sub) {
			return nil, false
		}
		index := len(m.meetSubs)
		term := m.ctx.RelativeTermForType(sub, subs)
		m.meetSubs = append(m.meetSubs, m.ctx.Term(term.symbols...))
		return types.Placeholder{Index: index}, true
	})
}

// ComputeTypeDifference unifies two concrete type symbols constraining the
// same key, returning difference ids describing how each side maps onto
// their meet. An id of -1 means that side already is the meet. The final
// result reports a structural conflict, meaning no type satisfies both.
func (s *System) ComputeTypeDifference(lhs, rhs *Symbol) (int, int, bool) {
	if lhs.kind != SymbolConcreteType || rhs.kind != SymbolConcreteType {
		panic("type difference requires concrete type symbols")
	}

	m := &typeMeet{ctx: s.ctx, lhsSubs: lhs.substitutions, rhsSubs: rhs.substitutions}
	schema := m.match(lhs.concrete, rhs.concrete)
	if m.conflict {
		return -1, -1, true
	}
	meet := s.ctx.ConcreteTypeSymbol(schema, m.meetSubs)

	lhsID, rhsID := -1, -1
	if meet != lhs {
		lhsID = s.recordTypeDifference(TypeDifference{
			LHS: lhs, RHS: meet, SameTypes: m.lhsSame, ConcreteTypes: m.lhsConcrete,
		})
	}
	if meet != rhs {
		rhsID = s.recordTypeDifference(TypeDifference{
			LHS: rhs, RHS: meet, SameTypes: m.rhsSame, ConcreteTypes: m.rhsConcrete,
		})
	}
	return lhsID, rhsID, false
}

func (s *System) recordTypeDifference(d TypeDifference) int {
	key := [2]*Symbol{d.LHS, d.RHS}
	if id, ok := s.differenceMap[key]; ok {
		return id
	}
	id := len(s.differences)
	s.differences = append(s.differences, d)
	s.differenceMap[key] = id
	return id
}

// TypeDifference returns the recorded difference with the given id.
func (s *System) TypeDifference(id int) *TypeDifference {
	return &s.differences[id]
}
