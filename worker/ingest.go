package worker

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"

	"go.uber.org/zap"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
)

// MaxRequestBytes bounds a decoded request body.
const MaxRequestBytes = 10 << 20

// ErrBadRequest marks requests that cannot be served as sent.
var ErrBadRequest = errors.New("bad request")

// Catalog resolves the language and scorer a request names.
type Catalog interface {
	Language(name string) ([]*lang.Primitive, core.Scorer, error)
}

// ConfigDoc is the configuration bag of a request.
type ConfigDoc struct {
	Language     string          `json:"language"`
	Solver       Kind            `json:"solver,omitempty"`
	BeamSize     int             `json:"beamsize,omitempty"`
	Componentize bool            `json:"componentize,omitempty"`
	Seed         int64           `json:"seed,omitempty"`
	InitialState json.RawMessage `json:"initialState,omitempty"`
}

// RequestDoc is the wire form of a synthesis request.
type RequestDoc struct {
	Spec      []core.IOSpec  `json:"inputspec"`
	Examples  []core.Example `json:"examples"`
	Threshold float64        `json:"threshold"`
	Bound     int            `json:"bound"`
	Budget    int            `json:"N"`
	Config    ConfigDoc      `json:"config"`
}

// Ingestor serves synthesis requests over HTTP.
type Ingestor struct {
	synth   Synthesizer
	catalog Catalog
	log     *zap.Logger
}

func NewIngestor(synth Synthesizer, catalog Catalog, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{synth: synth, catalog: catalog, log: log}
}

// Decode turns a request document into a Request, resolving the language
// and decoding the initial state if one is attached.
func (i *Ingestor) Decode(doc *RequestDoc) (Request, error) {
	if len(doc.Examples) == 0 {
		return Request{}, fmt.Errorf("%w: missing required field examples", ErrBadRequest)
	}
	decls, scorer, err := i.catalog.Language(doc.Config.Language)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	l, err := lang.New(decls, doc.Spec)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req := Request{
		Problem: core.Problem{
			Spec:      doc.Spec,
			Examples:  doc.Examples,
			Threshold: doc.Threshold,
			Bound:     doc.Bound,
			Budget:    doc.Budget,
		},
		Lang:   l,
		Scorer: scorer,
		Options: Options{
			Solver:       doc.Config.Solver,
			BeamSize:     doc.Config.BeamSize,
			Componentize: doc.Config.Componentize,
			Seed:         doc.Config.Seed,
		},
	}
	if len(doc.Config.InitialState) > 0 && string(doc.Config.InitialState) != "null" {
		st, err := UnmarshalSnapshot(doc.Config.InitialState, l, rand.New(rand.NewSource(doc.Config.Seed)), &ast.IDs{})
		if err != nil {
			return Request{}, fmt.Errorf("%w: initial state: %v", ErrBadRequest, err)
		}
		req.Options.InitialState = st
	}
	return req, nil
}

// ServeHTTP handles POST /synthesize. Bodies may be gzip encoded; the
// response is a result document.
func (i *Ingestor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body io.Reader = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer zr.Close()
		body = io.LimitReader(zr, MaxRequestBytes)
	}
	var doc RequestDoc
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := i.Decode(&doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := i.synth.Synthesize(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownSolver) || errors.Is(err, ErrBadRequest) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	out, err := EncodeResult(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	i.log.Debug("request served",
		zap.String("language", doc.Config.Language),
		zap.String("status", string(res.Status)),
		zap.Int("cost", res.Cost),
	)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
