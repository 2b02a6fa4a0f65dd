// Package control exposes live control session logs over HTTP.
package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/openbat/auth"
	"github.com/kilianp07/openbat/core/control/logging"
)

// NewLogHandler returns an HTTP handler exposing control logs via GET /api/control/logs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store logging.Store, token string) http.Handler {
	return auth.RequireBearer(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
}

func parseQuery(r *http.Request) (logging.Query, error) {
	v := r.URL.Query()
	q := logging.Query{Session: v.Get("session")}
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
	if s := v.Get("failed"); s != "" {
		if q.FailedOnly, err = strconv.ParseBool(s); err != nil {
			return q, errors.New("failed must be a boolean")
		}
	}
	return q, nil
}
