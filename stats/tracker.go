// Package stats learns which constructs tend to pay off in which search
// context and biases construct selection towards them.
package stats

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/lang"
)

const (
	// ColdStart is the number of observations a site needs before its
	// statistics are trusted over a uniform choice.
	ColdStart = 40
	// PolicyCacheSize bounds the number of cached weight tables.
	PolicyCacheSize = 4096
)

// Entry holds the best reward seen for a fingerprint and how many times
// it was observed.
type Entry struct {
	Reward float64
	Count  int
}

type policyKey struct {
	site ast.Fingerprint
	idx  int
	size int
}

// Tracker owns the reward table and a cache of cumulative weight tables.
type Tracker struct {
	table map[ast.Fingerprint]*Entry
	cache *lru.Cache[policyKey, []float64]
	rng   *rand.Rand
}

// NewTracker returns an empty tracker drawing from rng.
func NewTracker(rng *rand.Rand) *Tracker {
	cache, err := lru.New[policyKey, []float64](PolicyCacheSize)
	if err != nil {
		panic(err)
	}
	return &Tracker{table: map[ast.Fingerprint]*Entry{}, cache: cache, rng: rng}
}

// SetRand replaces the random source, e.g. after decoding a snapshot.
func (t *Tracker) SetRand(rng *rand.Rand) { t.rng = rng }

// Len is the number of fingerprints with statistics.
func (t *Tracker) Len() int { return len(t.table) }

// Get returns the entry for a fingerprint.
func (t *Tracker) Get(fp ast.Fingerprint) (Entry, bool) {
	e, ok := t.table[fp]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ResetPolicyCache drops every cached weight table. It must be called
// whenever the language grows and is also called periodically.
func (t *Tracker) ResetPolicyCache() { t.cache.Purge() }

// Weight is the saturating transform applied to rewards.
func Weight(reward float64) float64 {
	return (math.Tanh((reward-60)/40) + 1) / 2
}

func pick(l *lang.Language, extras []*lang.Primitive, i int) *lang.Primitive {
	if i < l.Len() {
		return l.At(i)
	}
	return extras[i-l.Len()]
}

// RandomConstruct chooses a construct for site, weighted by the rewards
// of the sites each choice leads to. Sites observed ColdStart times or
// fewer get a uniform choice.
func (t *Tracker) RandomConstruct(site *ast.Site, l *lang.Language, extras []*lang.Primitive) *lang.Primitive {
	n := l.Len() + len(extras)
	if n == 0 {
		return nil
	}
	uniform := func() *lang.Primitive { return pick(l, extras, t.rng.Intn(n)) }

	key := policyKey{site: site.Fingerprint(), idx: site.Idx, size: n}
	weights, ok := t.cache.Get(key)
	if !ok {
		e, seen := t.table[key.site]
		if !seen || e.Count <= ColdStart {
			return uniform()
		}
		weights = t.succWeights(site, l, extras)
		if weights[n-1] == 0 {
			return uniform()
		}
		t.cache.Add(key, weights)
	}
	r := t.rng.Float64() * weights[n-1]
	i := sort.Search(n, func(i int) bool { return weights[i] > r })
	if i == n {
		i = n - 1
	}
	return pick(l, extras, i)
}

// succWeights returns cumulative weights over language then extras.
func (t *Tracker) succWeights(site *ast.Site, l *lang.Language, extras []*lang.Primitive) []float64 {
	n := l.Len() + len(extras)
	out := make([]float64, n)
	zero := Weight(0)
	total := 0.0
	for i := 0; i < n; i++ {
		w := zero
		if e, ok := t.table[site.Next(pick(l, extras, i).Label())]; ok {
			w = Weight(e.Reward)
		}
		total += w
		out[i] = total
	}
	return out
}

// NextConstruct cycles through language then extras after cur. It returns
// nil once the cycle is back at initial.
func (t *Tracker) NextConstruct(cur *lang.Primitive, initial int, l *lang.Language, extras []*lang.Primitive) *lang.Primitive {
	n := l.Len() + len(extras)
	idx := (cur.Pos + 1) % n
	if idx == initial {
		return nil
	}
	return pick(l, extras, idx)
}

// Credit records reward for one fingerprint, keeping the maximum.
func (t *Tracker) Credit(fp ast.Fingerprint, reward float64) {
	if e, ok := t.table[fp]; ok {
		if reward > e.Reward {
			e.Reward = reward
		}
		e.Count++
		return
	}
	t.table[fp] = &Entry{Reward: reward, Count: 1}
}

// ScoreTree credits reward to every site visited while building prog.
// Rewards are 100*(1-score); non-positive rewards are ignored.
func (t *Tracker) ScoreTree(prog ast.Node, reward float64) {
	if reward <= 0 {
		return
	}
	ast.Walk(prog, func(n ast.Node) bool {
		m := n.M()
		if m.Site != nil {
			t.Credit(m.Site.Fingerprint(), reward)
		}
		if m.ChildSite != nil {
			t.Credit(m.ChildSite.Fingerprint(), reward)
		}
		return true
	})
}

// Reward converts a score in [0,1] into a reward.
func Reward(score float64) float64 { return 100 * (1 - score) }

// Rename rewrites the fun labels in every fingerprint through names and
// purges the cache.
func (t *Tracker) Rename(names map[string]string) {
	if len(names) == 0 {
		return
	}
	relabel := func(label string) string {
		if fname, ok := strings.CutPrefix(label, "fun/"); ok {
			if to, ok := names[fname]; ok {
				return "fun/" + to
			}
		}
		return label
	}
	table := make(map[ast.Fingerprint]*Entry, len(t.table))
	for fp, e := range t.table {
		fp.Grandpa = relabel(fp.Grandpa)
		fp.Parent = relabel(fp.Parent)
		if cur, ok := table[fp]; ok {
			cur.Reward = math.Max(cur.Reward, e.Reward)
			cur.Count += e.Count
			continue
		}
		cp := *e
		table[fp] = &cp
	}
	t.table = table
	t.cache.Purge()
}

// Merge folds other's statistics into t: rewards take the maximum and
// counts add up.
func (t *Tracker) Merge(other *Tracker) {
	for fp, e := range other.table {
		if cur, ok := t.table[fp]; ok {
			cur.Reward = math.Max(cur.Reward, e.Reward)
			cur.Count += e.Count
			continue
		}
		cp := *e
		t.table[fp] = &cp
	}
	t.cache.Purge()
}

// Clone deep copies the statistics. The clone shares the random source.
func (t *Tracker) Clone() *Tracker {
	cp := NewTracker(t.rng)
	for fp, e := range t.table {
		c := *e
		cp.table[fp] = &c
	}
	return cp
}

// EntryDoc is the serialized form of one statistics entry.
type EntryDoc struct {
	Key    string  `json:"key"`
	Reward float64 `json:"reward"`
	Count  int     `json:"scores"`
}

// Snapshot lists the entries sorted by key.
func (t *Tracker) Snapshot() []EntryDoc {
	out := make([]EntryDoc, 0, len(t.table))
	for fp, e := range t.table {
		out = append(out, EntryDoc{Key: fp.String(), Reward: e.Reward, Count: e.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Restore rebuilds a tracker from a snapshot.
func Restore(docs []EntryDoc, rng *rand.Rand) (*Tracker, error) {
	t := NewTracker(rng)
	for _, d := range docs {
		fp, err := ast.ParseFingerprint(d.Key)
		if err != nil {
			return nil, err
		}
		t.table[fp] = &Entry{Reward: d.Reward, Count: d.Count}
	}
	return t, nil
}
