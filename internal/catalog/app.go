package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"RecipeBox/pkg/kit"
)

const (
	maxRecipeBody = 1 << 20
	limitWindow   = 60 * time.Second
)

type Server struct {
	Catalog *Catalog
	Log     *zap.Logger

	writeLimit int
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Catalog.Ping(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/recipes", func(rr chi.Router) {
		rr.Get("/", s.list)
		rr.Get("/facets", s.facets)
		rr.Get("/{id}", s.get)

		rr.Group(func(wr chi.Router) {
			if s.writeLimit > 0 {
				limiter := kit.NewIPRateLimiter(s.writeLimit, int(limitWindow.Seconds()))
				wr.Use(limiter.Middleware)
			}
			wr.Post("/", s.create)
			wr.Put("/{id}", s.update)
			wr.Delete("/{id}", s.delete)
		})
	})

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilters(r.URL.Query())
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid filter", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Query(f))
}

func (s *Server) facets(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Facets())
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok := s.Catalog.Get(id)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, err := decodeRecipeRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	rec, err := s.Catalog.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, rec.ID)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in, err := decodeRecipeRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	rec, err := s.Catalog.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	kit.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.Catalog.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, id string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid recipe", ve)
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
	case errors.Is(err, ErrNotDurable):
		if s.Log != nil {
			s.Log.Warn("recipe change kept in memory only", zap.Error(err), zap.String("id", id))
		}
		kit.WriteError(w, r, http.StatusInsufficientStorage, "not saved", map[string]any{"id": id})
	default:
		if s.Log != nil {
			s.Log.Error("recipe request failed", zap.Error(err), zap.String("id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

type recipeReq struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Difficulty  string    `json:"difficulty"`
	Ingredients lines     `json:"ingredients"`
	Steps       lines     `json:"steps"`
	Times       flexTimes `json:"times"`
	Image       string    `json:"image"`
}

// lines accepts either a JSON array of strings or one newline-separated string.
type lines []string

func (l *lines) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*l = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = lines{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("must be a string or an array of strings")
	}
	*l = list
	return nil
}

// flexTimes accepts minutes as a JSON number or a string; parsing is left to
// Input.Validate so bad values surface as validation errors.
type flexTimes string

func (t *flexTimes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = flexTimes(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("times must be a number or a string")
		}
		*t = flexTimes(n.String())
	}
	return nil
}

func decodeRecipeRequest(w http.ResponseWriter, r *http.Request) (Input, error) {
	var req recipeReq
	if err := kit.DecodeJSON(w, r, maxRecipeBody, &req); err != nil {
		return Input{}, err
	}

	return Input{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		Times:       string(req.Times),
		Image:       req.Image,
	}, nil
}
