package ast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/snow-ghost/synth/typesys"
)

// ErrUnknownPrimitive is returned when a serialized program names a
// primitive the decoding language does not have.
var ErrUnknownPrimitive = errors.New("unknown primitive")

// Binding is what decoding needs to know about a primitive.
type Binding struct {
	Imp         Imp
	ParamImp    ParamImp
	DecodeParam func(raw json.RawMessage) (any, error)
}

// Library resolves primitive names while decoding.
type Library interface {
	Lookup(name string) (Binding, bool)
}

// Doc is the serialized form of a node. Shared subtrees are duplicated.
type Doc struct {
	Kind      string          `json:"kind"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Param     json.RawMessage `json:"param,omitempty"`
	Args      []*Doc          `json:"args,omitempty"`
	Body      *Doc            `json:"body,omitempty"`
	Val       int             `json:"val,omitempty"`
	Range     *[2]int         `json:"range,omitempty"`
	Idx       int             `json:"idx,omitempty"`
	Pos       int             `json:"pos,omitempty"`
	Type      *typesys.Doc    `json:"type,omitempty"`
	Site      *Site           `json:"site,omitempty"`
	ChildSite *Site           `json:"childSite,omitempty"`
}

// Encode converts a program to its document form.
func Encode(n Node) (*Doc, error) {
	m := n.M()
	d := &Doc{ID: m.ID, Type: typesys.Encode(m.Type), Site: m.Site, ChildSite: m.ChildSite}
	switch x := n.(type) {
	case *Fun:
		d.Kind = "fun"
		d.Name = x.Name
		if x.Parametric() {
			raw, err := json.Marshal(x.Param)
			if err != nil {
				return nil, fmt.Errorf("encode parameter of %s: %w", x.Name, err)
			}
			d.Param = raw
		}
		d.Args = make([]*Doc, len(x.Args))
		for i, a := range x.Args {
			ad, err := Encode(a)
			if err != nil {
				return nil, err
			}
			d.Args[i] = ad
		}
	case *Lambda:
		d.Kind = "lambda"
		bd, err := Encode(x.Body)
		if err != nil {
			return nil, err
		}
		d.Body = bd
	case *Input:
		d.Kind = "input"
		d.Name = x.Name
	case *IntLit:
		d.Kind = "int"
		d.Val = x.Val
		d.Range = &[2]int{x.Lo, x.Hi}
	case *Index:
		d.Kind = "index"
		d.Idx = x.Idx
	case *Hole:
		d.Kind = "hole"
	case *Plug:
		d.Kind = "plug"
		d.Pos = x.Pos
	default:
		return nil, fmt.Errorf("cannot encode %T", n)
	}
	return d, nil
}

// Decode rebuilds a program, resolving primitives through lib. ids, when
// given, observes every decoded identifier.
func Decode(d *Doc, lib Library, ids *IDs) (Node, error) {
	if d == nil {
		return nil, errors.New("missing node")
	}
	t, err := typesys.Decode(d.Type)
	if err != nil {
		return nil, err
	}
	meta := Meta{ID: d.ID, Type: t, Site: d.Site, ChildSite: d.ChildSite}
	if ids != nil {
		ids.Observe(d.ID)
	}
	var n Node
	switch d.Kind {
	case "fun":
		b, ok := lib.Lookup(d.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrimitive, d.Name)
		}
		args := make([]Node, len(d.Args))
		for i, ad := range d.Args {
			a, err := Decode(ad, lib, ids)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		f := &Fun{Meta: meta, Name: d.Name, Imp: b.Imp, Args: args}
		if b.ParamImp != nil {
			var param any
			if b.DecodeParam != nil {
				param, err = b.DecodeParam(d.Param)
			} else if len(d.Param) > 0 {
				err = json.Unmarshal(d.Param, &param)
			}
			if err != nil {
				return nil, fmt.Errorf("decode parameter of %s: %w", d.Name, err)
			}
			f.Param = param
			f.ParamImp = b.ParamImp
			f.Imp = b.ParamImp(param)
		}
		n = f
	case "lambda":
		body, err := Decode(d.Body, lib, ids)
		if err != nil {
			return nil, err
		}
		n = &Lambda{Meta: meta, Body: body}
	case "input":
		n = &Input{Meta: meta, Name: d.Name}
	case "int":
		lit := &IntLit{Meta: meta, Val: d.Val, Lo: d.Val, Hi: d.Val}
		if d.Range != nil {
			lit.Lo, lit.Hi = d.Range[0], d.Range[1]
		}
		n = lit
	case "index":
		n = &Index{Meta: meta, Idx: d.Idx}
	case "hole":
		n = &Hole{Meta: meta}
	case "plug":
		n = &Plug{Meta: meta, Pos: d.Pos}
	default:
		return nil, fmt.Errorf("unknown node kind %q", d.Kind)
	}
	Measure(n)
	return n, nil
}
