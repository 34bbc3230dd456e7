package stats

import (
	"math/rand"
	"testing"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(args []core.Value, _ core.Inputs) (core.Value, error) { return nil, nil }

func testLang(t *testing.T) *lang.Language {
	t.Helper()
	l, err := lang.New([]*lang.Primitive{
		{Name: "add", Kind: lang.KindFun, Sig: "int->int->int", Imp: noop},
		{Name: "neg", Kind: lang.KindFun, Sig: "int->int", Imp: noop},
		{Name: "N", Kind: lang.KindInt, Lo: 0, Hi: 3},
	}, []core.IOSpec{{Kind: "input", Name: "x", Type: "int"}})
	require.NoError(t, err)
	return l
}

func TestWeight(t *testing.T) {
	assert.InDelta(t, 0.5, Weight(60), 1e-12)
	assert.Less(t, Weight(0), 0.1)
	assert.Greater(t, Weight(100), 0.9)
	assert.Equal(t, 100.0, Reward(0))
	assert.Equal(t, 0.0, Reward(1))
}

func TestColdStartIsUniform(t *testing.T) {
	l := testLang(t)
	tr := NewTracker(rand.New(rand.NewSource(1)))
	site := ast.StartSite()
	seen := map[string]int{}
	for i := 0; i < 400; i++ {
		seen[tr.RandomConstruct(site, l, nil).Name]++
	}
	assert.Len(t, seen, 4)
	for name, c := range seen {
		assert.Greater(t, c, 50, name)
	}
}

func TestLearnedBias(t *testing.T) {
	l := testLang(t)
	tr := NewTracker(rand.New(rand.NewSource(2)))
	site := ast.StartSite()

	for i := 0; i <= ColdStart; i++ {
		tr.Credit(site.Fingerprint(), 10)
	}
	tr.Credit(site.Next("input/x"), 100)

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[tr.RandomConstruct(site, l, nil).Name]++
	}
	assert.Greater(t, counts["x"], 700)

	// extras are part of the weighted choice
	extras := []*lang.Primitive{{Name: "$0", Kind: lang.KindIndex, Pos: l.Len()}}
	got := map[string]bool{}
	for i := 0; i < 2000; i++ {
		got[tr.RandomConstruct(site, l, extras).Name] = true
	}
	assert.True(t, got["$0"])
}

func TestNextConstructWraps(t *testing.T) {
	l := testLang(t)
	tr := NewTracker(rand.New(rand.NewSource(3)))
	extras := []*lang.Primitive{{Name: "$0", Kind: lang.KindIndex, Pos: l.Len()}}

	start := l.At(2)
	var order []string
	for c := start; c != nil; c = tr.NextConstruct(c, start.Pos, l, extras) {
		order = append(order, c.Name)
	}
	assert.Equal(t, []string{"N", "x", "$0", "add", "neg"}, order)
}

func TestScoreTreeKeepsMax(t *testing.T) {
	tr := NewTracker(rand.New(rand.NewSource(4)))
	site := ast.StartSite()
	leaf := ast.NewInput(2, "x")
	leaf.Site = site.Child("fun/neg", 0)
	leaf.ChildSite = leaf.Site.Child("input/x", 0)
	root := ast.NewFun(1, "neg", noop, []ast.Node{leaf})
	root.Site = site

	tr.ScoreTree(root, 30)
	tr.ScoreTree(root, 80)
	tr.ScoreTree(root, 50)
	tr.ScoreTree(root, 0)

	e, ok := tr.Get(site.Fingerprint())
	require.True(t, ok)
	assert.Equal(t, 80.0, e.Reward)
	assert.Equal(t, 3, e.Count)
	assert.Equal(t, 3, tr.Len())
}

func TestRenameMergeSnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := NewTracker(rng)
	b := NewTracker(rng)
	fpA := ast.Fingerprint{Depth: 1, Grandpa: "START", Pos: 0, Parent: "fun/__foo4"}
	fpB := ast.Fingerprint{Depth: 1, Grandpa: "START", Pos: 0, Parent: "fun/__foo9"}
	a.Credit(fpA, 40)
	a.Credit(fpA, 10)
	b.Credit(fpB, 70)

	a.Rename(map[string]string{"__foo4": "__foo0"})
	b.Rename(map[string]string{"__foo9": "__foo0"})
	a.Merge(b)

	merged, ok := a.Get(ast.Fingerprint{Depth: 1, Grandpa: "START", Pos: 0, Parent: "fun/__foo0"})
	require.True(t, ok)
	assert.Equal(t, 70.0, merged.Reward)
	assert.Equal(t, 3, merged.Count)

	back, err := Restore(a.Snapshot(), rng)
	require.NoError(t, err)
	assert.Equal(t, a.Snapshot(), back.Snapshot())

	clone := a.Clone()
	clone.Credit(fpA, 1)
	assert.NotEqual(t, a.Len(), clone.Len())
}
