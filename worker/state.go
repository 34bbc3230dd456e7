package worker

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/kb/stitch"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/stats"
)

// NoScore is the best score of a state that has not scored anything yet.
const NoScore = 100000

// Candidate is a beam entry.
type Candidate struct {
	Prog  ast.Node
	Score float64

	origin int
}

// State is everything a search run leaves behind and a later run can
// resume from: the beam, the learned components, the best program seen,
// the effort spent and the construct statistics. A state is owned by one
// run at a time.
type State struct {
	ID        string
	BeamSize  int
	Beam      []Candidate
	Extra     []*lang.Primitive
	Best      ast.Node
	BestScore float64
	Cost      int
	Tracker   *stats.Tracker
}

// NewState returns an empty state for a beam of the given size.
func NewState(beamSize int, rng *rand.Rand) *State {
	return &State{
		ID:        uuid.NewString(),
		BeamSize:  beamSize,
		BestScore: NoScore,
		Tracker:   stats.NewTracker(rng),
	}
}

// Populate fills the beam up to BeamSize with entries from next.
func (s *State) Populate(next func(i int) (Candidate, error)) error {
	for i := len(s.Beam); i < s.BeamSize; i++ {
		c, err := next(i)
		if err != nil {
			return err
		}
		s.Beam = append(s.Beam, c)
		s.UpdateBest(c.Score, c.Prog)
	}
	return nil
}

// Sort orders the beam by score and refreshes the best program.
func (s *State) Sort() {
	sort.SliceStable(s.Beam, func(i, j int) bool { return s.Beam[i].Score < s.Beam[j].Score })
	s.refreshBest()
}

// SortByDepth orders the beam by score, breaking ties in favour of
// shallower programs.
func (s *State) SortByDepth() {
	quant := func(c Candidate) float64 { return c.Score*100 + float64(c.Prog.M().Depth) }
	sort.SliceStable(s.Beam, func(i, j int) bool { return quant(s.Beam[i]) < quant(s.Beam[j]) })
}

func (s *State) refreshBest() {
	if len(s.Beam) > 0 && s.Beam[0].Score < s.BestScore {
		s.BestScore = s.Beam[0].Score
		s.Best = s.Beam[0].Prog
	}
}

// High is the score at the head of the beam.
func (s *State) High() float64 {
	if len(s.Beam) == 0 {
		return NoScore
	}
	return s.Beam[0].Score
}

// Low is the score at the tail of the beam.
func (s *State) Low() float64 {
	if len(s.Beam) == 0 {
		return NoScore
	}
	return s.Beam[len(s.Beam)-1].Score
}

// ReplaceWorst puts c in place of one of the entries tied for the worst
// score, chosen uniformly.
func (s *State) ReplaceWorst(rng *rand.Rand, c Candidate) {
	n := len(s.Beam)
	if n == 0 {
		s.Beam = append(s.Beam, c)
		return
	}
	worst := s.Beam[n-1].Score
	for i := 0; i < n; i++ {
		if s.Beam[i].Score == worst {
			s.Beam[i+rng.Intn(n-i)] = c
			return
		}
	}
}

// UpdateBest records prog when it beats the best score.
func (s *State) UpdateBest(score float64, prog ast.Node) {
	if score < s.BestScore {
		s.BestScore = score
		s.Best = prog
	}
}

// BestProgram returns the best program and score seen, including the
// current beam head.
func (s *State) BestProgram() (ast.Node, float64) {
	s.refreshBest()
	return s.Best, s.BestScore
}

// AddCost adds spent steps and returns the total.
func (s *State) AddCost(n int) int {
	s.Cost += n
	return s.Cost
}

// Extend returns a copy of l with the learned components appended.
func (s *State) Extend(l *lang.Language) *lang.Language {
	ext := l.Clone()
	for _, p := range s.Extra {
		ext.Add(p)
	}
	return ext
}

// Componentize factors the best shared pattern of the beam out into a new
// primitive, adds it to l and rewrites the beam. The tracker cache is
// dropped and the rewritten programs are credited again.
func (s *State) Componentize(l *lang.Language, ids *ast.IDs) (*stitch.Component, bool) {
	progs := make([]ast.Node, len(s.Beam))
	for i, c := range s.Beam {
		progs[i] = c.Prog
	}
	comp, ok := stitch.Componentize(progs, l, ids)
	if !ok {
		return nil, false
	}
	l.Add(comp.Prim)
	s.Extra = append(s.Extra, comp.Prim)
	s.Tracker.ResetPolicyCache()
	for i := range s.Beam {
		s.Beam[i].Prog = comp.Programs[i]
		s.Tracker.ScoreTree(comp.Programs[i], stats.Reward(s.Beam[i].Score))
	}
	return comp, true
}

// Merge folds other into s. The two beams are pooled and the best
// beamSize entries kept. Learned components of both sides are renamed
// into one namespace and those no surviving program needs are dropped.
// Costs add up and the statistics are merged under the new names. other
// must not be used afterwards.
func (s *State) Merge(other *State, beamSize int) {
	for i := range s.Beam {
		s.Beam[i].origin = 1
	}
	pool := append([]Candidate(nil), s.Beam...)
	for _, c := range other.Beam {
		c.origin = 2
		pool = append(pool, c)
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score < pool[j].Score })
	if len(pool) > beamSize {
		pool = pool[:beamSize]
	}

	next := 0
	names := func(extra []*lang.Primitive) map[string]string {
		m := make(map[string]string, len(extra))
		for _, p := range extra {
			m[p.Name] = "__foo" + strconv.Itoa(next)
			next++
		}
		return m
	}
	renameThis, renameThat := names(s.Extra), names(other.Extra)

	best, bestScore := s.Best, s.BestScore
	bestNames, bestOther := renameThis, false
	if other.BestScore < s.BestScore {
		best, bestScore = other.Best, other.BestScore
		bestNames, bestOther = renameThat, true
	}

	if next > 0 {
		usesThis, usesThat := map[string]int{}, map[string]int{}
		for i, c := range pool {
			names, uses := renameThis, usesThis
			if c.origin == 2 {
				names, uses = renameThat, usesThat
			}
			pool[i].Prog = relabel(c.Prog, names, uses)
		}
		if best != nil {
			uses := usesThis
			if bestOther {
				uses = usesThat
			}
			best = relabel(best, bestNames, uses)
		}
		extra := keepUsed(s.Extra, renameThis, usesThis)
		s.Extra = append(extra, keepUsed(other.Extra, renameThat, usesThat)...)
	}

	s.Beam = pool
	s.BeamSize = beamSize
	s.Best, s.BestScore = best, bestScore
	s.Cost += other.Cost

	s.Tracker.Rename(renameThis)
	theirs := other.Tracker.Clone()
	theirs.Rename(renameThat)
	s.Tracker.Merge(theirs)
}

// relabel renames component calls in prog. Renamed programs get fresh
// sites so their statistics land under the new labels.
func relabel(prog ast.Node, names map[string]string, uses map[string]int) ast.Node {
	local := map[string]int{}
	out := ast.Rename(prog, names, local)
	if len(local) == 0 {
		return prog
	}
	for name, n := range local {
		uses[name] += n
	}
	out = ast.Clone(out)
	ast.ResetSites(out)
	return out
}

// keepUsed returns renamed copies of the components still referenced,
// directly or through the source of another kept component. Components
// only refer to ones learned before them.
func keepUsed(extra []*lang.Primitive, names map[string]string, uses map[string]int) []*lang.Primitive {
	keep := make([]bool, len(extra))
	for i := len(extra) - 1; i >= 0; i-- {
		if uses[extra[i].Name] > 0 {
			keep[i] = true
			ast.Uses(extra[i].Source, uses)
		}
	}
	var out []*lang.Primitive
	for i, p := range extra {
		if !keep[i] {
			continue
		}
		src := ast.Rename(p.Source, names, nil)
		out = append(out, lang.Synthetic(names[p.Name], src, p.Type, p.Arity()))
	}
	return out
}
