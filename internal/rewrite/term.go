package rewrite

import (
	"strings"
)

// Term is an interned, immutable symbol sequence. Obtain one through
// Context.Term; interned terms compare by pointer identity.
type Term struct {
	symbols []*Symbol
}

func (t *Term) Len() int           { return len(t.symbols) }
func (t *Term) At(i int) *Symbol   { return t.symbols[i] }
func (t *Term) Back() *Symbol      { return t.symbols[len(t.symbols)-1] }
func (t *Term) Symbols() []*Symbol { return t.symbols }

func (t *Term) String() string {
	return termString(t.symbols)
}

// ContainsUnresolvedSymbols reports whether any symbol is an unresolved
// name, looking through substitution terms as well.
func (t *Term) ContainsUnresolvedSymbols() bool {
	return symbolsContainUnresolved(t.symbols)
}

func symbolsContainUnresolved(symbols []*Symbol) bool {
	for _, s := range symbols {
		if s.kind == SymbolName {
			return true
		}
		if s.HasSubstitutions() {
			for _, sub := range s.substitutions {
				if symbolsContainUnresolved(sub.symbols) {
					return true
				}
			}
		}
	}
	return false
}

// RootProtocol returns the protocol the term is rooted in: the protocol of a
// leading protocol or associated type symbol. Terms rooted at a generic
// parameter have no root protocol.
func (t *Term) RootProtocol() (string, bool) {
	return rootProtocol(t.symbols)
}

func rootProtocol(symbols []*Symbol) (string, bool) {
	switch symbols[0].kind {
	case SymbolProtocol:
		return symbols[0].name, true
	case SymbolAssociatedType:
		return symbols[0].protocols[0], true
	}
	return "", false
}

func termString(symbols []*Symbol) string {
	var b strings.Builder
	for i, s := range symbols {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// MutableTerm is a growable symbol sequence owned exclusively by its holder.
type MutableTerm struct {
	symbols []*Symbol
}

func NewMutableTerm(symbols ...*Symbol) *MutableTerm {
	return &MutableTerm{symbols: append([]*Symbol(nil), symbols...)}
}

func (t *Term) Mutable() *MutableTerm {
	return NewMutableTerm(t.symbols...)
}

func (m *MutableTerm) Len() int           { return len(m.symbols) }
func (m *MutableTerm) At(i int) *Symbol   { return m.symbols[i] }
func (m *MutableTerm) Back() *Symbol      { return m.symbols[len(m.symbols)-1] }
func (m *MutableTerm) Symbols() []*Symbol { return m.symbols }

func (m *MutableTerm) String() string {
	return termString(m.symbols)
}

func (m *MutableTerm) Clone() *MutableTerm {
	return NewMutableTerm(m.symbols...)
}

func (m *MutableTerm) Add(s *Symbol) {
	m.symbols = append(m.symbols, s)
}

func (m *MutableTerm) Append(symbols []*Symbol) {
	m.symbols = append(m.symbols, symbols...)
}

// SetBack replaces the final symbol.
func (m *MutableTerm) SetBack(s *Symbol) {
	m.symbols[len(m.symbols)-1] = s
}

func (m *MutableTerm) RootProtocol() (string, bool) {
	return rootProtocol(m.symbols)
}

func (m *MutableTerm) ContainsUnresolvedSymbols() bool {
	return symbolsContainUnresolved(m.symbols)
}

// Equal reports whether two terms consist of the same symbols. Since symbols
// are interned this is a pointer-wise comparison.
func (m *MutableTerm) Equal(other *MutableTerm) bool {
	if len(m.symbols) != len(other.symbols) {
		return false
	}
	for i := range m.symbols {
		if m.symbols[i] != other.symbols[i] {
			return false
		}
	}
	return true
}

// Compare gives the linear order on terms: length first, with longer terms
// ordered after shorter ones, then symbol-wise. The second result is false
// when some symbol pair is incomparable.
func (m *MutableTerm) Compare(other *MutableTerm, ctx *Context) (int, bool) {
	if len(m.symbols) != len(other.symbols) {
		if len(m.symbols) < len(other.symbols) {
			return -1, true
		}
		return 1, true
	}
	for i := range m.symbols {
		r, ok := m.symbols[i].Compare(other.symbols[i], ctx)
		if !ok {
			return 0, false
		}
		if r != 0 {
			return r, true
		}
	}
	return 0, true
}

// findSubterm returns the first position where lhs occurs as a subterm, or
// -1 if it does not occur.
func (m *MutableTerm) findSubterm(lhs []*Symbol) int {
	if len(lhs) > len(m.symbols) {
		return -1
	}
	for start := 0; start+len(lhs) <= len(m.symbols); start++ {
		if symbolsEqual(m.symbols[start:start+len(lhs)], lhs) {
			return start
		}
	}
	return -1
}

func symbolsEqual(a, b []*Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rewriteSubterm overwrites the occurrence of lhs at start with rhs.
func (m *MutableTerm) rewriteSubterm(start int, lhsLen int, rhs []*Symbol) {
	out := make([]*Symbol, 0, len(m.symbols)-lhsLen+len(rhs))
	out = append(out, m.symbols[:start]...)
	out = append(out, rhs...)
	out = append(out, m.symbols[start+lhsLen:]...)
	m.symbols = out
}

// OverlapKind classifies how one rule's left hand side overlaps another's.
type OverlapKind int

const (
	// OverlapNone means the terms do not overlap.
	OverlapNone OverlapKind = iota
	// OverlapContained: this == T.U.V and other == U.
	OverlapContained
	// OverlapBoundary: this == T.U and other == U.V.
	OverlapBoundary
)

// checkForOverlap looks for an overlap between m and other for the purposes
// of completion, returning the whiskers T and V. The relation is not
// commutative; callers check both orderings.
func (m *MutableTerm) checkForOverlap(other *MutableTerm) (OverlapKind, []*Symbol, []*Symbol) {
	if len(other.symbols) > len(m.symbols) {
		return OverlapNone, nil, nil
	}

	// Containment: other occurs properly inside m, with a non-empty suffix.
	for start := 0; start+len(other.symbols) < len(m.symbols); start++ {
		if symbolsEqual(m.symbols[start:start+len(other.symbols)], other.symbols) {
			t := m.symbols[:start]
			v := m.symbols[start+len(other.symbols):]
			return OverlapContained, t, v
		}
	}

	// Boundary: a non-empty proper suffix of m equals a prefix of other.
	for start := len(m.symbols) - len(other.symbols); start < len(m.symbols); start++ {
		if start < 0 {
			continue
		}
		n := len(m.symbols) - start
		if symbolsEqual(m.symbols[start:], other.symbols[:n]) {
			t := m.symbols[:start]
			v := other.symbols[n:]
			if len(t) == 0 {
				// Identical terms; a rule does not overlap with itself.
				if len(v) == 0 {
					return OverlapNone, nil, nil
				}
				continue
			}
			return OverlapBoundary, t, v
		}
	}

	return OverlapNone, nil, nil
}
