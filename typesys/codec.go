package typesys

import (
	"encoding/json"
	"fmt"
)

// Doc is the serialized form of a Type.
type Doc struct {
	Kind string `json:"kind"` // base, var, param or fun
	Name string `json:"name,omitempty"`
	ID   int    `json:"id,omitempty"`
	Args []*Doc `json:"params,omitempty"`
	From *Doc   `json:"from,omitempty"`
	To   *Doc   `json:"to,omitempty"`
}

// Encode converts a type to its document form. A nil type encodes as nil.
func Encode(t Type) *Doc {
	switch tt := t.(type) {
	case Prim:
		return &Doc{Kind: "base", Name: tt.Name}
	case Var:
		return &Doc{Kind: "var", Name: tt.Name, ID: tt.ID}
	case Param:
		d := &Doc{Kind: "param", Name: tt.Name, Args: make([]*Doc, len(tt.Args))}
		for i, a := range tt.Args {
			d.Args[i] = Encode(a)
		}
		return d
	case Func:
		return &Doc{Kind: "fun", From: Encode(tt.From), To: Encode(tt.To)}
	}
	return nil
}

// Decode rebuilds a type from its document form.
func Decode(d *Doc) (Type, error) {
	if d == nil {
		return nil, nil
	}
	switch d.Kind {
	case "base":
		return Prim{Name: d.Name}, nil
	case "var":
		return Var{Name: d.Name, ID: d.ID}, nil
	case "param":
		args := make([]Type, len(d.Args))
		for i, a := range d.Args {
			t, err := Decode(a)
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, fmt.Errorf("%w: empty parameter %d of %s", ErrParse, i, d.Name)
			}
			args[i] = t
		}
		return Param{Name: d.Name, Args: args}, nil
	case "fun":
		from, err := Decode(d.From)
		if err != nil {
			return nil, err
		}
		to, err := Decode(d.To)
		if err != nil {
			return nil, err
		}
		if from == nil || to == nil {
			return nil, fmt.Errorf("%w: incomplete function type", ErrParse)
		}
		return Func{From: from, To: to}, nil
	}
	return nil, fmt.Errorf("%w: unknown type kind %q", ErrParse, d.Kind)
}

// Ref wraps a Type so it can be embedded directly in JSON documents.
// It accepts either a structured document or a type string on input.
type Ref struct {
	Type Type
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(r.Type))
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t, err := Parse(s)
		if err != nil {
			return err
		}
		r.Type = t
		return nil
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	t, err := Decode(&d)
	if err != nil {
		return err
	}
	r.Type = t
	return nil
}
