package ast

import (
	"fmt"
)

// Walk visits n and its descendants in pre-order. Returning false from
// visit skips the node's children.
func Walk(n Node, visit func(Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, visit)
	}
}

// Traverse visits n with three hooks: enter before the children, reenter
// after each child, and leave after all of them. Nil hooks are skipped.
func Traverse(n Node, enter, reenter, leave func(Node)) {
	if enter != nil {
		enter(n)
	}
	for _, c := range n.Children() {
		Traverse(c, enter, reenter, leave)
		if reenter != nil {
			reenter(n)
		}
	}
	if leave != nil {
		leave(n)
	}
}

// Equal compares two programs structurally. Metadata is ignored.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Fun:
		y, ok := b.(*Fun)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) || x.Parametric() != y.Parametric() {
			return false
		}
		if x.Parametric() && fmt.Sprint(x.Param) != fmt.Sprint(y.Param) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *Lambda:
		y, ok := b.(*Lambda)
		return ok && Equal(x.Body, y.Body)
	case *Input:
		y, ok := b.(*Input)
		return ok && x.Name == y.Name
	case *IntLit:
		y, ok := b.(*IntLit)
		return ok && x.Val == y.Val
	case *Index:
		y, ok := b.(*Index)
		return ok && x.Idx == y.Idx
	case *Hole:
		_, ok := b.(*Hole)
		return ok
	case *Plug:
		y, ok := b.(*Plug)
		return ok && x.Pos == y.Pos
	}
	return false
}

// WithChildren returns a shallow copy of n whose children are replaced.
// Metadata is kept and depth and size are recomputed. Leaves are returned
// unchanged.
func WithChildren(n Node, children []Node) Node {
	switch x := n.(type) {
	case *Fun:
		cp := *x
		cp.Args = children
		Measure(&cp)
		return &cp
	case *Lambda:
		cp := *x
		cp.Body = children[0]
		Measure(&cp)
		return &cp
	}
	return n
}

// Map rebuilds the tree bottom up. f receives each node after its
// children have been mapped and may return it unchanged. Unchanged
// subtrees are shared with the input.
func Map(n Node, f func(Node) Node) Node {
	kids := n.Children()
	if len(kids) > 0 {
		var out []Node
		for i, c := range kids {
			nc := Map(c, f)
			if nc != c && out == nil {
				out = make([]Node, len(kids))
				copy(out, kids[:i])
			}
			if out != nil {
				out[i] = nc
			}
		}
		if out != nil {
			n = WithChildren(n, out)
		}
	}
	return f(n)
}

// Replace rebuilds the tree top down. When f reports a replacement the
// node is swapped and its subtree is not visited further.
func Replace(n Node, f func(Node) (Node, bool)) Node {
	if r, ok := f(n); ok {
		return r
	}
	kids := n.Children()
	if len(kids) == 0 {
		return n
	}
	var out []Node
	for i, c := range kids {
		nc := Replace(c, f)
		if nc != c && out == nil {
			out = make([]Node, len(kids))
			copy(out, kids[:i])
		}
		if out != nil {
			out[i] = nc
		}
	}
	if out == nil {
		return n
	}
	return WithChildren(n, out)
}

// Rename rewrites Fun names through names and counts how many nodes were
// renamed per original name.
func Rename(n Node, names map[string]string, uses map[string]int) Node {
	return Map(n, func(m Node) Node {
		f, ok := m.(*Fun)
		if !ok {
			return m
		}
		to, ok := names[f.Name]
		if !ok {
			return m
		}
		if uses != nil {
			uses[f.Name]++
		}
		cp := *f
		cp.Name = to
		return &cp
	})
}

// Uses counts Fun references by name.
func Uses(n Node, counts map[string]int) {
	Walk(n, func(m Node) bool {
		if f, ok := m.(*Fun); ok {
			counts[f.Name]++
		}
		return true
	})
}

// FreeIndices labels every node with the largest de Bruijn index it
// leaves unbound, or -1 when it is closed.
func FreeIndices(n Node) map[Node]int {
	out := map[Node]int{}
	Traverse(n, nil, nil, func(m Node) {
		switch x := m.(type) {
		case *Index:
			out[m] = x.Idx
		case *Fun:
			free := -1
			for _, a := range x.Args {
				free = max(free, out[a])
			}
			out[m] = free
		case *Lambda:
			if b := out[x.Body]; b < 1 {
				out[m] = -1
			} else {
				out[m] = b - 1
			}
		default:
			out[m] = -1
		}
	})
	return out
}

// NumberPlugs renumbers the plugs of a pattern in pre-order and returns
// the renumbered copy together with the plug count.
func NumberPlugs(n Node) (Node, int) {
	count := 0
	var walk func(Node) Node
	walk = func(m Node) Node {
		if p, ok := m.(*Plug); ok {
			np := *p
			np.Pos = count
			count++
			return &np
		}
		kids := m.Children()
		if len(kids) == 0 {
			return m
		}
		out := make([]Node, len(kids))
		for i, c := range kids {
			out[i] = walk(c)
		}
		return WithChildren(m, out)
	}
	return walk(n), count
}

// Clone deep copies a tree, metadata included. The copy shares nothing
// with n.
func Clone(n Node) Node {
	switch x := n.(type) {
	case *Fun:
		cp := *x
		cp.Args = make([]Node, len(x.Args))
		for i, a := range x.Args {
			cp.Args[i] = Clone(a)
		}
		return &cp
	case *Lambda:
		cp := *x
		cp.Body = Clone(x.Body)
		return &cp
	case *Input:
		cp := *x
		return &cp
	case *IntLit:
		cp := *x
		return &cp
	case *Index:
		cp := *x
		return &cp
	case *Plug:
		cp := *x
		return &cp
	}
	return NewHole()
}
