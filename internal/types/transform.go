package types

// Walk calls f on t and every subterm of t, outermost first.
func Walk(t Type, f func(Type)) {
	f(t)
	switch tt := t.(type) {
	case Nominal:
		for _, a := range tt.Args {
			Walk(a, f)
		}
	case Tuple:
		for _, e := range tt.Elements {
			Walk(e, f)
		}
	case Func:
		for _, p := range tt.Params {
			Walk(p, f)
		}
		Walk(tt.Result, f)
	case Member:
		Walk(tt.Base, f)
	}
}

// Transform rebuilds t bottom-up, replacing any subterm for which f returns
// a replacement. When f claims a subterm its children are not visited.
func Transform(t Type, f func(Type) (Type, bool)) Type {
	if repl, ok := f(t); ok {
		return repl
	}
	switch tt := t.(type) {
	case Nominal:
		args := make([]Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = Transform(a, f)
		}
		return Nominal{Name: tt.Name, Args: args}
	case Tuple:
		elems := make([]Type, len(tt.Elements))
		for i, e := range tt.Elements {
			elems[i] = Transform(e, f)
		}
		return Tuple{Elements: elems}
	case Func:
		params := make([]Type, len(tt.Params))
		for i, p := range tt.Params {
			params[i] = Transform(p, f)
		}
		return Func{Params: params, Result: Transform(tt.Result, f)}
	case Member:
		return Member{Base: Transform(tt.Base, f), Name: tt.Name, Protocol: tt.Protocol}
	default:
		return t
	}
}

// TypeParameters returns the distinct type-parameter subterms of t in
// left-to-right discovery order. Member chains count as a whole; their bases
// are not reported separately.
func TypeParameters(t Type) []Type {
	var out []Type
	var visit func(Type)
	seen := map[string]bool{}
	visit = func(t Type) {
		if IsTypeParameter(t) {
			key := t.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, t)
			}
			return
		}
		switch tt := t.(type) {
		case Nominal:
			for _, a := range tt.Args {
				visit(a)
			}
		case Tuple:
			for _, e := range tt.Elements {
				visit(e)
			}
		case Func:
			for _, p := range tt.Params {
				visit(p)
			}
			visit(tt.Result)
		}
	}
	visit(t)
	return out
}
