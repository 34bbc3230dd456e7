// Package stitch mines recurring subexpressions from a set of programs and
// factors the best one out into a new primitive.
package stitch

import (
	"fmt"
	"sort"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/lang"
)

const (
	// MaxWorklist is the worklist size that triggers trimming.
	MaxWorklist = 10000
	// TrimTo is how many candidates survive a trim.
	TrimTo = 5000
)

// Candidate is a pattern together with the program nodes it matches.
// Holes are still to be decided; plugs become arguments.
type Candidate struct {
	Pattern   ast.Node
	Instances []ast.Node
	Size      int
	Count     int
	Score     int
	Bound     int
	complete  bool
}

// Label groups instances while growing patterns. Parametric funs are
// distinguished by parameter and leaves by their printed form.
func Label(n ast.Node) string {
	switch x := n.(type) {
	case *ast.Lambda:
		return "lambda"
	case *ast.Fun:
		if x.Parametric() {
			return fmt.Sprintf("pFun/%s[%v]", x.Name, x.Param)
		}
		return "fun/" + x.Name
	}
	return n.String()
}

type miner struct {
	free map[ast.Node]int
}

// Stitch returns the best pattern found in programs, or nil when no
// pattern occurs at least twice and covers more than its instance count.
// Patterns already known as components of l are skipped.
func Stitch(programs []ast.Node, l *lang.Language) *Candidate {
	m := &miner{free: map[ast.Node]int{}}
	for _, p := range programs {
		for n, f := range ast.FreeIndices(p) {
			m.free[n] = f
		}
	}
	known := map[string]bool{}
	for _, p := range l.Prims() {
		if p.Synthetic && p.Source != nil {
			known[p.Source.String()] = true
		}
	}

	worklist := seed(programs)
	sort.SliceStable(worklist, func(i, j int) bool { return worklist[i].Bound > worklist[j].Bound })
	for len(worklist) > 0 {
		var grown []*Candidate
		for _, c := range worklist {
			grown = append(grown, m.grow(c)...)
		}
		sort.SliceStable(grown, func(i, j int) bool { return grown[i].Score > grown[j].Score })

		var keep []*Candidate
		for _, c := range grown {
			if c.Count <= 1 || known[c.Pattern.String()] || !closed(c.Pattern) {
				continue
			}
			if c.Bound != c.Score || c.Size > 1 {
				keep = append(keep, c)
			}
		}
		if len(keep) == 0 {
			return nil
		}
		best := keep[0].Score
		worklist = worklist[:0]
		for _, c := range keep {
			if c.Bound >= best {
				worklist = append(worklist, c)
			}
		}
		if len(worklist) == 0 {
			return nil
		}
		if len(worklist) > MaxWorklist {
			worklist = worklist[:TrimTo]
		}
		done := true
		for _, c := range worklist {
			done = done && c.complete
		}
		if done {
			break
		}
	}
	if len(worklist) == 0 {
		return nil
	}
	return worklist[0]
}

// seed groups every fun and lambda node by label into one-node patterns.
func seed(programs []ast.Node) []*Candidate {
	var order []string
	groups := map[string][]ast.Node{}
	for _, p := range programs {
		ast.Walk(p, func(n ast.Node) bool {
			switch n.(type) {
			case *ast.Fun, *ast.Lambda:
				label := Label(n)
				if _, ok := groups[label]; !ok {
					order = append(order, label)
				}
				groups[label] = append(groups[label], n)
			}
			return true
		})
	}
	out := make([]*Candidate, 0, len(order))
	for _, label := range order {
		inst := groups[label]
		total := 0
		for _, n := range inst {
			total += n.M().Size
		}
		out = append(out, &Candidate{
			Pattern:   withHoles(inst[0]),
			Instances: inst,
			Size:      1,
			Count:     len(inst),
			Score:     len(inst),
			Bound:     total,
		})
	}
	return out
}

// grow fills the first hole of c in every way its instances allow.
func (m *miner) grow(c *Candidate) []*Candidate {
	if c.complete {
		return []*Candidate{c}
	}
	path, underLambda, ok := firstHole(c.Pattern, false)
	if !ok {
		c.complete = true
		return []*Candidate{c}
	}

	type group struct {
		pattern ast.Node
		inst    []ast.Node
	}
	var groups []*group
	var plug *group
	if !underLambda {
		plug = &group{pattern: ast.NewPlug(0)}
		groups = append(groups, plug)
	}
	byLabel := map[string]*group{}
	for _, inst := range c.Instances {
		node := at(inst, path)
		if f, ok := m.free[node]; plug != nil && ok && f == -1 {
			plug.inst = append(plug.inst, inst)
		}
		label := Label(node)
		g, ok := byLabel[label]
		if !ok {
			g = &group{pattern: withHoles(node)}
			byLabel[label] = g
			groups = append(groups, g)
		}
		g.inst = append(g.inst, inst)
	}

	var out []*Candidate
	for _, g := range groups {
		if len(g.inst) == 0 {
			continue
		}
		out = append(out, newCandidate(replaceAt(c.Pattern, path, g.pattern), g.inst))
	}
	if len(out) == 0 {
		c.complete = true
		return []*Candidate{c}
	}
	return out
}

func newCandidate(pattern ast.Node, inst []ast.Node) *Candidate {
	size := pattern.M().Size
	return &Candidate{
		Pattern:   pattern,
		Instances: inst,
		Size:      size,
		Count:     len(inst),
		Score:     size * len(inst),
		Bound:     scoreBound(pattern, inst),
	}
}

// scoreBound is an upper bound on the score any completion of pattern
// can reach on matches.
func scoreBound(pattern ast.Node, matches []ast.Node) int {
	switch pattern.(type) {
	case *ast.Plug:
		return 0
	case *ast.Hole:
		total := 0
		for _, n := range matches {
			total += n.M().Size
		}
		return total
	}
	bound := len(matches)
	for i, child := range pattern.Children() {
		sub := make([]ast.Node, len(matches))
		for j, n := range matches {
			sub[j] = n.Children()[i]
		}
		bound += scoreBound(child, sub)
	}
	return bound
}

// firstHole returns the child index path to the first hole in pre-order
// and whether its parent is a lambda.
func firstHole(n ast.Node, parentLambda bool) ([]int, bool, bool) {
	if _, ok := n.(*ast.Hole); ok {
		return nil, parentLambda, true
	}
	_, isLambda := n.(*ast.Lambda)
	for i, c := range n.Children() {
		if path, under, ok := firstHole(c, isLambda); ok {
			return append([]int{i}, path...), under, true
		}
	}
	return nil, false, false
}

func at(n ast.Node, path []int) ast.Node {
	for _, i := range path {
		n = n.Children()[i]
	}
	return n
}

func replaceAt(n ast.Node, path []int, repl ast.Node) ast.Node {
	if len(path) == 0 {
		return repl
	}
	kids := append([]ast.Node(nil), n.Children()...)
	kids[path[0]] = replaceAt(kids[path[0]], path[1:], repl)
	return ast.WithChildren(n, kids)
}

// withHoles copies the head of n with holes for its children.
func withHoles(n ast.Node) ast.Node {
	switch x := n.(type) {
	case *ast.Lambda:
		return ast.NewLambda(0, ast.NewHole())
	case *ast.Fun:
		holes := make([]ast.Node, len(x.Args))
		for i := range holes {
			holes[i] = ast.NewHole()
		}
		if x.Parametric() {
			return ast.NewParamFun(0, x.Name, x.ParamImp, x.Param, holes)
		}
		return ast.NewFun(0, x.Name, x.Imp, holes)
	case *ast.Input:
		return ast.NewInput(0, x.Name)
	case *ast.IntLit:
		return ast.NewInt(0, x.Val, x.Lo, x.Hi)
	case *ast.Index:
		return ast.NewIndex(0, x.Idx)
	}
	return n
}

// closed reports whether the fixed part of a pattern has no unbound
// indices. Such patterns stay open however they grow.
func closed(pattern ast.Node) bool {
	return ast.FreeIndices(pattern)[pattern] == -1
}
