// CLAUDE:SUMMARY chi routes for coverage: check (200/409), save, history, chart PNG, badge SVG, latest, discovery, health.
package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/covgate/shield"
)

// RegisterHTTP mounts the coverage routes on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "Ok")
	})
	r.Get("/health", s.handleHealth)

	r.Route("/coverage", func(r chi.Router) {
		r.Get("/", s.handleProjects)
		r.Get("/{projectName}", s.handleBranches)
		r.Get("/{projectName}/{branch}", s.handleTests)

		r.Route("/{projectName}/{branch}/{testName}", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Get("/check", s.handleCheck)
			r.Post("/save", s.handleSave)
			r.Get("/chart", s.handleChart)
			r.Get("/badge", s.handleBadge)
			r.Get("/latest", s.handleLatest)
		})
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "snapshots": n})
}

func (s *Service) handleCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub, err := s.parse(s.checks, keyFrom(r), valuesLookup(q), false)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	v, err := s.Check(r.Context(), sub)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	code := http.StatusOK
	if !v.Accepted {
		code = http.StatusConflict
	}
	writeText(w, code, v.Message)
}

func (s *Service) handleSave(w http.ResponseWriter, r *http.Request) {
	lookup, err := bodyLookup(r)
	if err != nil {
		s.count(s.saves, "invalid")
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := s.parse(s.saves, keyFrom(r), lookup, true)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	snap, err := s.Save(r.Context(), sub)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("X-Snapshot-ID", snap.ID)
	writeText(w, http.StatusOK, "Saved")
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.History(r.Context(), keyFrom(r))
	if errors.Is(err, ErrNotFound) {
		writeText(w, http.StatusNotFound, "Project/branch and/or test does not exist.")
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Service) handleChart(w http.ResponseWriter, r *http.Request) {
	img, err := s.Chart(r.Context(), keyFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (s *Service) handleBadge(w http.ResponseWriter, r *http.Request) {
	svg, err := s.Badge(r.Context(), keyFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(svg)
}

func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Latest(r.Context(), keyFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Service) handleProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.Projects(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleBranches(w http.ResponseWriter, r *http.Request) {
	out, err := s.Branches(r.Context(), param(r, "projectName"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleTests(w http.ResponseWriter, r *http.Request) {
	out, err := s.Tests(r.Context(), param(r, "projectName"), param(r, "branch"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeFailure maps an error to its status: 400 validation, 404 not found,
// 500 anything else. The body is the plain error text.
func (s *Service) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeText(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		writeText(w, http.StatusNotFound, "Project/branch and/or test does not exist.")
	default:
		shield.GetLogger(r.Context()).Error("coverage: request failed", "error", err)
		writeText(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Helpers ---

// param returns a decoded route parameter. Branch names such as
// "feature/x" arrive percent-encoded.
// param returns a decoded route parameter. chi matches on RawPath when the
// request has one (an escaped "/" in a branch), so only then is the value
// still escaped; otherwise it is already decoded and must not be decoded twice.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func keyFrom(r *http.Request) Key {
	return Key{
		ProjectName: param(r, "projectName"),
		Branch:      param(r, "branch"),
		TestName:    param(r, "testName"),
	}
}

func valuesLookup(v url.Values) Lookup {
	return func(name string) (string, bool) {
		if !v.Has(name) {
			return "", false
		}
		return v.Get(name), true
	}
}

// bodyLookup reads a JSON object or a form body. JSON values may be strings
// or numbers.
func bodyLookup(r *http.Request) (Lookup, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return valuesLookup(r.PostForm), nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return mapLookup(body), nil
}

func mapLookup(m map[string]any) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		if !ok || v == nil {
			return "", false
		}
		switch t := v.(type) {
		case string:
			return t, true
		case json.Number:
			return t.String(), true
		default:
			return fmt.Sprint(t), true
		}
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
