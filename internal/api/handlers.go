package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
	"github.com/gyeh/icuscore/internal/timeseries"
)

const maxBodyBytes = 4 << 20

// Handler serves scoring requests against the in-memory registry.
type Handler struct {
	log     zerolog.Logger
	aliases normalize.Aliases
	coefs   map[severity.System]severity.Coefficients
}

// NewHandler creates a Handler. coefs supplies the default risk coefficients per
// system; systems missing from it use the published values.
func NewHandler(log zerolog.Logger, aliases normalize.Aliases, coefs map[severity.System]severity.Coefficients) *Handler {
	if aliases == nil {
		aliases = normalize.DefaultAliases()
	}
	return &Handler{log: log, aliases: aliases, coefs: coefs}
}

// bound marshals an infinite table edge as the string "inf".
type bound float64

func (b bound) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(b), 1) {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(b))
}

type variableInfo struct {
	Variable string  `json:"variable"`
	Kind     string  `json:"kind"`
	Bounds   []bound `json:"bounds,omitempty"`
	Points   []int   `json:"points,omitempty"`
}

type variablesResponse struct {
	System       string         `json:"system"`
	Variables    []variableInfo `json:"variables"`
	Inputs       []string       `json:"inputs"`
	Coefficients []float64      `json:"coefficients"`
}

// Row is one timeseries row of a score request.
type Row struct {
	Hours  float64           `json:"hours"`
	Values map[string]string `json:"values"`
}

type scoreRequest struct {
	Rows         []Row     `json:"rows"`
	WithRisk     bool      `json:"with_risk"`
	Coefficients []float64 `json:"coefficients,omitempty"`
}

type variableScore struct {
	Variable string `json:"variable"`
	Kind     string `json:"kind"`
	// Points is null when the variable had no usable observation.
	Points *int `json:"points"`
	Masked bool `json:"masked,omitempty"`
}

type scoreResponse struct {
	System        string          `json:"system"`
	Total         int             `json:"total"`
	WindowMissing bool            `json:"window_missing"`
	Variables     []variableScore `json:"variables"`
	Risk          *float64        `json:"risk,omitempty"`
}

type riskRequest struct {
	Score        *float64  `json:"score"`
	Coefficients []float64 `json:"coefficients,omitempty"`
}

type riskResponse struct {
	System       string    `json:"system"`
	Score        float64   `json:"score"`
	Coefficients []float64 `json:"coefficients"`
	Risk         float64   `json:"risk"`
}

// ListSystems returns the supported score system names.
func (h *Handler) ListSystems(w http.ResponseWriter, r *http.Request) {
	names := make([]string, len(severity.AllSystems))
	for i, s := range severity.AllSystems {
		names[i] = s.String()
	}
	h.respond(w, http.StatusOK, map[string][]string{"systems": names})
}

// Variables describes the rules of one system.
func (h *Handler) Variables(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	resp := variablesResponse{
		System:       def.System.String(),
		Inputs:       def.Inputs(),
		Coefficients: h.coefficients(def, nil),
	}
	for _, rule := range def.Rules {
		info := variableInfo{Variable: rule.Variable(), Kind: rule.Kind().String()}
		var table *severity.IntervalTable
		switch rr := rule.(type) {
		case severity.NumericInterval:
			table = &rr.Table
		case severity.CumulativeSum:
			table = &rr.Table
		}
		if table != nil {
			for _, b := range table.Bounds() {
				info.Bounds = append(info.Bounds, bound(b))
			}
			for _, b := range table.Buckets {
				info.Points = append(info.Points, b.Points)
			}
		}
		resp.Variables = append(resp.Variables, info)
	}
	h.respond(w, http.StatusOK, resp)
}

// Score windows the posted rows and returns the total with its breakdown.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	ts, err := h.timeseries(req.Rows)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	resp := scoreResponse{System: def.System.String()}
	win, err := timeseries.Window(ts)
	if errors.Is(err, severity.ErrMissingRequiredWindow) {
		resp.WindowMissing = true
	} else if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	res := def.Aggregate(win)
	resp.Total = res.Total
	for _, v := range res.Variables {
		vs := variableScore{Variable: v.Variable, Kind: v.Kind.String(), Masked: v.Masked}
		if v.Points != severity.Absent {
			p := int(v.Points)
			vs.Points = &p
		}
		resp.Variables = append(resp.Variables, vs)
	}

	if req.WithRisk || len(req.Coefficients) > 0 {
		p, err := def.Risk(float64(res.Total), h.coefficients(def, req.Coefficients))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err)
			return
		}
		resp.Risk = &p
	}
	h.respond(w, http.StatusOK, resp)
}

// Risk converts a posted total score into a probability.
func (h *Handler) Risk(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	var req riskRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		h.respondError(w, http.StatusBadRequest, errors.New("score is required"))
		return
	}
	if *req.Score < 0 {
		h.respondError(w, http.StatusBadRequest, fmt.Errorf("score %v must not be negative", *req.Score))
		return
	}
	c := h.coefficients(def, req.Coefficients)
	p, err := def.Risk(*req.Score, c)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	h.respond(w, http.StatusOK, riskResponse{System: def.System.String(), Score: *req.Score, Coefficients: c, Risk: p})
}

func (h *Handler) definition(w http.ResponseWriter, r *http.Request) (*severity.Definition, bool) {
	sys, err := severity.ParseSystem(chi.URLParam(r, "system"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, err)
		return nil, false
	}
	def, err := sys.Definition()
	if err != nil {
		h.respondError(w, http.StatusNotFound, err)
		return nil, false
	}
	return def, true
}

func (h *Handler) coefficients(def *severity.Definition, override []float64) severity.Coefficients {
	if len(override) > 0 {
		return severity.Coefficients(override)
	}
	if c, ok := h.coefs[def.System]; ok {
		return c
	}
	return def.DefaultCoefficients()
}

// timeseries turns request rows into a column-oriented stay, resolving value
// names through the alias map.
func (h *Handler) timeseries(rows []Row) (*model.Timeseries, error) {
	names := make(map[string]string)
	for _, row := range rows {
		for raw := range row.Values {
			if _, seen := names[raw]; seen {
				continue
			}
			canon, _ := h.aliases.Resolve(raw)
			names[raw] = canon
		}
	}
	owner := make(map[string]string, len(names))
	for raw, canon := range names {
		if canon == severity.VarHours {
			return nil, fmt.Errorf("value %q: hours belong in the row's hours field", raw)
		}
		if prev, dup := owner[canon]; dup {
			return nil, fmt.Errorf("values %q and %q both map to %s", prev, raw, canon)
		}
		owner[canon] = raw
	}

	ts := &model.Timeseries{Stay: "request", Columns: make(map[string][]string, len(owner))}
	for canon := range owner {
		ts.Columns[canon] = make([]string, len(rows))
	}
	for i, row := range rows {
		ts.Hours = append(ts.Hours, row.Hours)
		for raw, v := range row.Values {
			ts.Columns[names[raw]][i] = v
		}
	}
	return ts, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, err error) {
	h.respond(w, code, map[string]string{"error": err.Error()})
}
