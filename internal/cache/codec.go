package cache

import (
	"encoding/json"
	"fmt"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// JSON encoding for requirement lists, used for the cache rows. Types encode
// as one-field objects tagged by variant so decoding restores the exact
// structure.

type typeJSON struct {
	Nominal     *nominalJSON `json:"nominal,omitempty"`
	Tuple       []typeJSON   `json:"tuple,omitempty"`
	Func        *funcJSON    `json:"func,omitempty"`
	Param       *paramJSON   `json:"param,omitempty"`
	Member      *memberJSON  `json:"member,omitempty"`
	Placeholder *int         `json:"placeholder,omitempty"`
}

type nominalJSON struct {
	Name string     `json:"name"`
	Args []typeJSON `json:"args,omitempty"`
}

type funcJSON struct {
	Params []typeJSON `json:"params"`
	Result typeJSON   `json:"result"`
}

type paramJSON struct {
	Depth int `json:"depth"`
	Index int `json:"index"`
}

type memberJSON struct {
	Base     typeJSON `json:"base"`
	Name     string   `json:"name"`
	Protocol string   `json:"protocol,omitempty"`
}

type requirementJSON struct {
	Kind       int       `json:"kind"`
	Subject    typeJSON  `json:"subject"`
	Constraint *typeJSON `json:"constraint,omitempty"`
	Protocol   string    `json:"protocol,omitempty"`
	Layout     *struct {
		Kind      int `json:"kind"`
		Size      int `json:"size"`
		Alignment int `json:"alignment"`
	} `json:"layout,omitempty"`
	Inferred bool `json:"inferred,omitempty"`
}

func encodeType(t types.Type) typeJSON {
	switch tt := t.(type) {
	case types.Nominal:
		n := nominalJSON{Name: tt.Name}
		for _, a := range tt.Args {
			n.Args = append(n.Args, encodeType(a))
		}
		return typeJSON{Nominal: &n}
	case types.Tuple:
		elems := make([]typeJSON, len(tt.Elements))
		for i, e := range tt.Elements {
			elems[i] = encodeType(e)
		}
		return typeJSON{Tuple: elems}
	case types.Func:
		f := funcJSON{Result: encodeType(tt.Result)}
		for _, p := range tt.Params {
			f.Params = append(f.Params, encodeType(p))
		}
		return typeJSON{Func: &f}
	case types.Param:
		return typeJSON{Param: &paramJSON{Depth: tt.Depth, Index: tt.Index}}
	case types.Member:
		return typeJSON{Member: &memberJSON{
			Base:     encodeType(tt.Base),
			Name:     tt.Name,
			Protocol: tt.Protocol,
		}}
	case types.Placeholder:
		index := tt.Index
		return typeJSON{Placeholder: &index}
	}
	panic(fmt.Sprintf("unknown type variant: %T", t))
}

func decodeType(j typeJSON) (types.Type, error) {
	switch {
	case j.Nominal != nil:
		n := types.Nominal{Name: j.Nominal.Name}
		for _, a := range j.Nominal.Args {
			arg, err := decodeType(a)
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
		}
		return n, nil
	case j.Tuple != nil:
		t := types.Tuple{}
		for _, e := range j.Tuple {
			elem, err := decodeType(e)
			if err != nil {
				return nil, err
			}
			t.Elements = append(t.Elements, elem)
		}
		return t, nil
	case j.Func != nil:
		f := types.Func{}
		for _, p := range j.Func.Params {
			param, err := decodeType(p)
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, param)
		}
		result, err := decodeType(j.Func.Result)
		if err != nil {
			return nil, err
		}
		f.Result = result
		return f, nil
	case j.Param != nil:
		return types.Param{Depth: j.Param.Depth, Index: j.Param.Index}, nil
	case j.Member != nil:
		base, err := decodeType(j.Member.Base)
		if err != nil {
			return nil, err
		}
		return types.Member{Base: base, Name: j.Member.Name, Protocol: j.Member.Protocol}, nil
	case j.Placeholder != nil:
		return types.Placeholder{Index: *j.Placeholder}, nil
	}
	return nil, fmt.Errorf("empty type encoding")
}

// encodeRequirements serializes a requirement list to JSON.
func encodeRequirements(reqs []decl.Requirement) (string, error) {
	out := make([]requirementJSON, 0, len(reqs))
	for _, req := range reqs {
		r := requirementJSON{
			Kind:     int(req.Kind),
			Subject:  encodeType(req.Subject),
			Protocol: req.Protocol,
			Inferred: req.Inferred,
		}
		if req.Constraint != nil {
			c := encodeType(req.Constraint)
			r.Constraint = &c
		}
		if req.Kind == decl.LayoutRequirement {
			r.Layout = &struct {
				Kind      int `json:"kind"`
				Size      int `json:"size"`
				Alignment int `json:"alignment"`
			}{int(req.Layout.Kind), req.Layout.Size, req.Layout.Alignment}
		}
		out = append(out, r)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding requirements: %w", err)
	}
	return string(data), nil
}

// decodeRequirements deserializes a requirement list from JSON.
func decodeRequirements(data string) ([]decl.Requirement, error) {
	var in []requirementJSON
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, fmt.Errorf("decoding requirements: %w", err)
	}
	out := make([]decl.Requirement, 0, len(in))
	for _, r := range in {
		subject, err := decodeType(r.Subject)
		if err != nil {
			return nil, err
		}
		req := decl.Requirement{
			Kind:     decl.RequirementKind(r.Kind),
			Subject:  subject,
			Protocol: r.Protocol,
			Inferred: r.Inferred,
		}
		if r.Constraint != nil {
			constraint, err := decodeType(*r.Constraint)
			if err != nil {
				return nil, err
			}
			req.Constraint = constraint
		}
		if r.Layout != nil {
			req.Layout = decl.Layout{
				Kind:      decl.LayoutKind(r.Layout.Kind),
				Size:      r.Layout.Size,
				Alignment: r.Layout.Alignment,
			}
		}
		out = append(out, req)
	}
	return out, nil
}
