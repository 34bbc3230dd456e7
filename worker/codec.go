package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/stats"
	"github.com/snow-ghost/synth/typesys"
)

// ResultKind tags result documents so they can be told apart from bare
// states.
const ResultKind = "result"

// ComponentDoc is a learned component: its body with numbered plugs and
// its type. The implementation is rebuilt from the body.
type ComponentDoc struct {
	Name   string       `json:"name"`
	Source *ast.Doc     `json:"source"`
	Type   *typesys.Doc `json:"type"`
	Arity  int          `json:"nargs"`
}

// CandidateDoc is a serialized beam entry.
type CandidateDoc struct {
	Prog  *ast.Doc `json:"prog"`
	Score float64  `json:"score"`
}

// StateDoc is the serialized form of a State.
type StateDoc struct {
	ID        string           `json:"id,omitempty"`
	BeamSize  int              `json:"beamsize"`
	Beam      []CandidateDoc   `json:"workList"`
	Extra     []ComponentDoc   `json:"extraComponents"`
	Best      *ast.Doc         `json:"bestProgram,omitempty"`
	BestScore float64          `json:"bestScore"`
	Cost      int              `json:"cost"`
	Stats     []stats.EntryDoc `json:"st"`
}

// ResultDoc is the serialized form of a Result.
type ResultDoc struct {
	Kind   string      `json:"kind"`
	Status core.Status `json:"status"`
	Prog   *ast.Doc    `json:"prog,omitempty"`
	Score  float64     `json:"score"`
	Cost   int         `json:"cost"`
	State  *StateDoc   `json:"state,omitempty"`
}

// EncodeState converts a state to its document form.
func EncodeState(s *State) (*StateDoc, error) {
	d := &StateDoc{
		ID:        s.ID,
		BeamSize:  s.BeamSize,
		Beam:      make([]CandidateDoc, len(s.Beam)),
		Extra:     make([]ComponentDoc, len(s.Extra)),
		BestScore: s.BestScore,
		Cost:      s.Cost,
		Stats:     s.Tracker.Snapshot(),
	}
	for i, p := range s.Extra {
		src, err := ast.Encode(p.Source)
		if err != nil {
			return nil, fmt.Errorf("encode component %s: %w", p.Name, err)
		}
		d.Extra[i] = ComponentDoc{Name: p.Name, Source: src, Type: typesys.Encode(p.Type), Arity: p.Arity()}
	}
	for i, c := range s.Beam {
		prog, err := ast.Encode(c.Prog)
		if err != nil {
			return nil, fmt.Errorf("encode beam entry %d: %w", i, err)
		}
		d.Beam[i] = CandidateDoc{Prog: prog, Score: c.Score}
	}
	if s.Best != nil {
		best, err := ast.Encode(s.Best)
		if err != nil {
			return nil, fmt.Errorf("encode best program: %w", err)
		}
		d.Best = best
	}
	return d, nil
}

// DecodeState rebuilds a state against l, the language the state was
// produced for (inputs included). Components are rebuilt in order, each
// one able to call the ones before it; programs are resolved against l
// extended with the components. ids observes every decoded node and may
// be nil.
func DecodeState(d *StateDoc, l *lang.Language, rng *rand.Rand, ids *ast.IDs) (*State, error) {
	if d == nil {
		return nil, errors.New("missing state")
	}
	tracker, err := stats.Restore(d.Stats, rng)
	if err != nil {
		return nil, fmt.Errorf("decode statistics: %w", err)
	}
	s := &State{
		ID:        d.ID,
		BeamSize:  d.BeamSize,
		BestScore: d.BestScore,
		Cost:      d.Cost,
		Tracker:   tracker,
	}
	ext := l.Clone()
	for _, cd := range d.Extra {
		src, err := ast.Decode(cd.Source, ext, ids)
		if err != nil {
			return nil, fmt.Errorf("decode component %s: %w", cd.Name, err)
		}
		typ, err := typesys.Decode(cd.Type)
		if err != nil {
			return nil, fmt.Errorf("decode component %s: %w", cd.Name, err)
		}
		if typ == nil {
			return nil, fmt.Errorf("decode component %s: missing type", cd.Name)
		}
		p := lang.Synthetic(cd.Name, src, typ, cd.Arity)
		ext.Add(p)
		s.Extra = append(s.Extra, p)
	}
	s.Beam = make([]Candidate, len(d.Beam))
	for i, cd := range d.Beam {
		prog, err := ast.Decode(cd.Prog, ext, ids)
		if err != nil {
			return nil, fmt.Errorf("decode beam entry %d: %w", i, err)
		}
		s.Beam[i] = Candidate{Prog: prog, Score: cd.Score}
	}
	if d.Best != nil {
		best, err := ast.Decode(d.Best, ext, ids)
		if err != nil {
			return nil, fmt.Errorf("decode best program: %w", err)
		}
		s.Best = best
	}
	return s, nil
}

// EncodeResult converts a result to its document form.
func EncodeResult(r *Result) (*ResultDoc, error) {
	d := &ResultDoc{Kind: ResultKind, Status: r.Status, Score: r.Score, Cost: r.Cost}
	if r.Prog != nil {
		prog, err := ast.Encode(r.Prog)
		if err != nil {
			return nil, fmt.Errorf("encode program: %w", err)
		}
		d.Prog = prog
	}
	if r.State != nil {
		st, err := EncodeState(r.State)
		if err != nil {
			return nil, err
		}
		d.State = st
	}
	return d, nil
}

// DecodeResult rebuilds a result against l.
func DecodeResult(d *ResultDoc, l *lang.Language, rng *rand.Rand, ids *ast.IDs) (*Result, error) {
	if d == nil {
		return nil, errors.New("missing result")
	}
	r := &Result{Status: d.Status, Score: d.Score, Cost: d.Cost}
	lib := l
	if d.State != nil {
		st, err := DecodeState(d.State, l, rng, ids)
		if err != nil {
			return nil, err
		}
		r.State = st
		lib = st.Extend(l)
	}
	if d.Prog != nil {
		prog, err := ast.Decode(d.Prog, lib, ids)
		if err != nil {
			return nil, fmt.Errorf("decode program: %w", err)
		}
		r.Prog = prog
	}
	return r, nil
}

// snapshot is the union of the two document shapes, told apart by Kind.
type snapshot struct {
	StateDoc
	Kind   string      `json:"kind"`
	Status core.Status `json:"status"`
	Prog   *ast.Doc    `json:"prog"`
	Score  float64     `json:"score"`
	State  *StateDoc   `json:"state"`
}

// UnmarshalSnapshot accepts either a result document or a bare state
// document and returns the state it carries.
func UnmarshalSnapshot(b []byte, l *lang.Language, rng *rand.Rand, ids *ast.IDs) (*State, error) {
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Kind == ResultKind {
		return DecodeState(snap.State, l, rng, ids)
	}
	return DecodeState(&snap.StateDoc, l, rng, ids)
}
