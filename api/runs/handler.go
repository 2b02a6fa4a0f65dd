// Package runs exposes stored simulation runs over HTTP.
package runs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/openbat/core/results"
)

// summary adds derived figures to a stored record.
type summary struct {
	results.Record
	ExtraGridMWh float64 `json:"extra_grid_mwh"`
}

// NewHandler serves GET /api/runs with the optional filters system, start,
// end (RFC 3339) and limit, and GET /api/runs/{id}.
func NewHandler(store results.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		recs, err := store.List(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]summary, len(recs))
		for i, rec := range recs {
			out[i] = summary{Record: rec, ExtraGridMWh: rec.ExtraGridMWh()}
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.Get(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, results.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, summary{Record: rec, ExtraGridMWh: rec.ExtraGridMWh()})
	})
	return mux
}

func parseQuery(r *http.Request) (results.Query, error) {
	v := r.URL.Query()
	q := results.Query{System: v.Get("system")}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("start must be RFC 3339")
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("end must be RFC 3339")
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			return q, errors.New("limit must be a non negative integer")
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
