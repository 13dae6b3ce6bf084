package decl

import "fmt"

// LayoutKind classifies a layout constraint.
type LayoutKind int

const (
	// LayoutAnyObject requires a class reference.
	LayoutAnyObject LayoutKind = iota
	// LayoutNativeClass requires a native class reference; refines AnyObject.
	LayoutNativeClass
	// LayoutTrivial requires a trivially-copyable value of any size.
	LayoutTrivial
	// LayoutTrivialSized requires a trivially-copyable value of an exact
	// size and alignment; refines Trivial.
	LayoutTrivialSized
)

// Layout is a layout constraint. Size and Alignment are meaningful only for
// LayoutTrivialSized.
type Layout struct {
	Kind      LayoutKind
	Size      int
	Alignment int
}

func (l Layout) String() string {
	switch l.Kind {
	case LayoutAnyObject:
		return "AnyObject"
	case LayoutNativeClass:
		return "_NativeClass"
	case LayoutTrivial:
		return "_Trivial"
	case LayoutTrivialSized:
		return fmt.Sprintf("_Trivial(%d,%d)", l.Size, l.Alignment)
	}
	return "?"
}

// Subsumes reports whether every value satisfying other also satisfies l.
func (l Layout) Subsumes(other Layout) bool {
	if l == other {
		return true
	}
	switch l.Kind {
	case LayoutAnyObject:
		return other.Kind == LayoutNativeClass
	case LayoutTrivial:
		return other.Kind == LayoutTrivialSized
	}
	return false
}

// IsClass reports whether the layout requires a class reference.
func (l Layout) IsClass() bool {
	return l.Kind == LayoutAnyObject || l.Kind == LayoutNativeClass
}

// Merge intersects two layout constraints. ok is false when no value can
// satisfy both.
func (l Layout) Merge(other Layout) (Layout, bool) {
	if l.Subsumes(other) {
		return other, true
	}
	if other.Subsumes(l) {
		return l, true
	}
	return Layout{}, false
}

// Compare gives the linear order used when layouts appear in symbols.
func (l Layout) Compare(other Layout) int {
	if l.Kind != other.Kind {
		return int(l.Kind) - int(other.Kind)
	}
	if l.Size != other.Size {
		return l.Size - other.Size
	}
	return l.Alignment - other.Alignment
}
