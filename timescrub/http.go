package timescrub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/timescrub/shield"
)

// Handler returns the host HTTP API.
//
//	GET  /health
//	POST /api/open                 {"url", "current"}
//	PUT  /api/current/{key}
//	GET  /api/state
//	POST /api/step/{delta}         -1, 1, prev, next
//	POST /api/click/{index}
//	POST /api/diff/toggle
//	PUT  /api/diff/mode/{mode}
//	PUT  /api/diff/slider/{pct}
//	PUT  /api/diff/opacity/{pct}
//	GET  /api/diff                 active request and artifact
//	GET  /api/diff/surface         HTML fragment
//	GET  /api/diff/pixel.png
//	GET  /api/diff/text
//	GET  /api/bookmarks?url=
//	POST /api/bookmarks/toggle     {"url", "timestamp"}, both empty = selected snapshot
//	GET  /api/resolve?url=&at=
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(e.archive.BaseURL()) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/open", e.handleOpen)
		r.Put("/current/{key}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, e.SetCurrent(r.Context(), chi.URLParam(r, "key")))
		})
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, e.Selection(r.Context()))
		})
		r.Post("/step/{delta}", e.handleStep)
		r.Post("/click/{index}", e.handleClick)

		r.Route("/diff", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, 200, e.Comparison())
			})
			r.Post("/toggle", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, e.ToggleDiff(r.Context()))
			})
			r.Put("/mode/{mode}", func(w http.ResponseWriter, r *http.Request) {
				if err := e.SetMode(r.Context(), chi.URLParam(r, "mode")); err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, 200, e.Comparison())
			})
			r.Put("/slider/{pct}", e.handlePercent(e.SetSlider))
			r.Put("/opacity/{pct}", e.handlePercent(e.SetOpacity))
			r.Get("/surface", e.handleSurface)
			r.Get("/pixel.png", e.handlePixelPNG)
			r.Get("/text", func(w http.ResponseWriter, r *http.Request) {
				td, err := e.TextDiff(r.Context())
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, 200, td)
			})
		})

		r.Get("/bookmarks", func(w http.ResponseWriter, r *http.Request) {
			pageURL := r.URL.Query().Get("url")
			if pageURL == "" {
				pageURL = e.Selection(r.Context()).URL
			}
			list, err := e.Bookmarks(r.Context(), pageURL)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if list == nil {
				list = []string{}
			}
			writeJSON(w, 200, map[string]any{"url": pageURL, "timestamps": list})
		})
		r.Post("/bookmarks/toggle", e.handleBookmarkToggle)
		r.Get("/resolve", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("url") == "" || q.Get("at") == "" {
				writeError(w, 400, errors.New("url and at are required"))
				return
			}
			res, err := e.Resolve(r.Context(), q.Get("url"), q.Get("at"))
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, res)
		})
	})
	return r
}

func (e *Engine) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL     string `json:"url"`
		Current string `json:"current"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.URL == "" {
		writeError(w, 400, errors.New("url is required"))
		return
	}
	sel, err := e.Open(r.Context(), req.URL, req.Current)
	if err != nil {
		writeJSON(w, statusOf(err), sel)
		return
	}
	writeJSON(w, 200, sel)
}

func (e *Engine) handleStep(w http.ResponseWriter, r *http.Request) {
	var delta int
	switch p := chi.URLParam(r, "delta"); p {
	case "prev":
		delta = -1
	case "next":
		delta = 1
	default:
		n, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, 400, fmt.Errorf("delta: %w", err))
			return
		}
		if n != -1 && n != 1 {
			writeError(w, 400, fmt.Errorf("delta: %d is not a step, want -1 or 1", n))
			return
		}
		delta = n
	}
	in, ok := e.Step(r.Context(), delta)
	if !ok {
		writeJSON(w, 409, map[string]any{"moved": false})
		return
	}
	writeJSON(w, 200, map[string]any{"moved": true, "intent": in})
}

func (e *Engine) handleClick(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, 400, fmt.Errorf("index: %w", err))
		return
	}
	res, err := e.Click(r.Context(), index)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, res)
}

func (e *Engine) handlePercent(set func(int) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pct, err := strconv.Atoi(chi.URLParam(r, "pct"))
		if err != nil {
			writeError(w, 400, fmt.Errorf("pct: %w", err))
			return
		}
		writeJSON(w, 200, map[string]int{"value": set(pct)})
	}
}

func (e *Engine) handleSurface(w http.ResponseWriter, _ *http.Request) {
	html, err := e.Surface()
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(200)
	w.Write([]byte(html))
}

func (e *Engine) handlePixelPNG(w http.ResponseWriter, _ *http.Request) {
	data, err := e.PixelPNG()
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(200)
	w.Write(data)
}

func (e *Engine) handleBookmarkToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		Timestamp string `json:"timestamp"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
	}

	var (
		on  bool
		err error
	)
	switch {
	case req.URL == "" && req.Timestamp == "":
		on, err = e.ToggleBookmark(r.Context())
	case req.URL == "" || req.Timestamp == "":
		writeError(w, 400, errors.New("url and timestamp go together"))
		return
	default:
		on, err = e.ToggleBookmarkAt(r.Context(), req.URL, req.Timestamp)
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]bool{"bookmarked": on})
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMode), errors.Is(err, ErrIndexOutOfRange):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrNotComparing), errors.Is(err, ErrNoTarget),
		errors.Is(err, ErrSelectionUnresolved), errors.Is(err, ErrNotReady):
		return 409
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTimelineLoad):
		return 502
	}
	return 500
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
