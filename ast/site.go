package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Site is the search context a construct is chosen in: the parent
// construct and its own parent, the position among the parent's children
// and the depth.
type Site struct {
	Parent    string `json:"parent"`
	Grandpa   string `json:"grandpa"`
	ParentIdx int    `json:"parentIdx"`
	Idx       int    `json:"idx"`
	Depth     int    `json:"depth"`
}

// Fingerprint keys reward statistics.
type Fingerprint struct {
	Depth   int
	Grandpa string
	Pos     int
	Parent  string
}

// StartSite is the context of a program root.
func StartSite() *Site {
	return &Site{Parent: "START"}
}

// Fingerprint of the site itself.
func (s *Site) Fingerprint() Fingerprint {
	return Fingerprint{Depth: s.Depth, Grandpa: s.Grandpa, Pos: s.ParentIdx, Parent: s.Parent}
}

// Next is the fingerprint of the site reached by choosing the construct
// labelled label here.
func (s *Site) Next(label string) Fingerprint {
	return Fingerprint{Depth: s.Depth + 1, Grandpa: s.Parent, Pos: s.Idx, Parent: label}
}

// Child is the site of child idx of a node labelled label placed here.
func (s *Site) Child(label string, idx int) *Site {
	return &Site{Parent: label, Grandpa: s.Parent, ParentIdx: s.Idx, Idx: idx, Depth: s.Depth + 1}
}

// String renders depth:grandpa:pos:parent.
func (f Fingerprint) String() string {
	return strconv.Itoa(f.Depth) + ":" + f.Grandpa + ":" + strconv.Itoa(f.Pos) + ":" + f.Parent
}

// ParseFingerprint reads the String form back. Labels never contain ':'
// except in the grandpa/parent slots, which are split from the ends.
func ParseFingerprint(s string) (Fingerprint, error) {
	first := strings.IndexByte(s, ':')
	if first < 0 {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q", s)
	}
	depth, err := strconv.Atoi(s[:first])
	if err != nil {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q: %w", s, err)
	}
	rest := s[first+1:]
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q", s)
	}
	pos, err := strconv.Atoi(parts[1])
	if err != nil {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q: %w", s, err)
	}
	return Fingerprint{Depth: depth, Grandpa: parts[0], Pos: pos, Parent: parts[2]}, nil
}

// ResetSites recomputes the site of every node of prog from its position
// and refreshes depth and size. Nodes are updated in place, so prog must
// not share subtrees with other programs.
func ResetSites(prog Node) {
	cur := StartSite()
	next := map[Node]int{}
	Traverse(prog, func(n Node) {
		m := n.M()
		m.Site = cur
		if len(n.Children()) == 0 {
			m.ChildSite = cur.Child(Label(n), 0)
			return
		}
		m.ChildSite = nil
		cur = cur.Child(Label(n), 0)
	}, func(n Node) {
		next[n]++
		cur = n.M().Site.Child(Label(n), next[n])
	}, func(n Node) {
		Measure(n)
	})
}
