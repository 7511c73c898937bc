package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/reactive"
	"github.com/vango-dev/vstore/pkg/store"
)

// releaseTracking drops the reactive tracking context a handler left on
// its connection goroutine, which net/http reuses for the next request.
func releaseTracking(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer reactive.ReleaseGoroutine()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(releaseTracking)
	for _, mw := range s.middleware {
		r.Use(mw)
	}

	r.Get("/stores", s.handleStores)
	r.Get("/state", s.handleState)
	r.Get("/state/{id}", s.handleStoreState)
	r.Patch("/state/{id}", s.handlePatch)
	r.Post("/stores/{id}/actions/{name}", s.handleAction)
	r.Get("/ws", s.handleWebSocket)
	for _, extra := range s.extra {
		r.Handle(extra.pattern, extra.handler)
	}
	return r
}

type storeInfo struct {
	ID      string   `json:"id"`
	Built   bool     `json:"built"`
	State   []string `json:"state,omitempty"`
	Getters []string `json:"getters,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	infos := make([]storeInfo, 0, len(s.defs))
	_ = s.Do(func(reg *store.Registry) error {
		for _, def := range s.defs {
			info := storeInfo{ID: def.ID()}
			if st, ok := reg.Store(def.ID()); ok {
				info.Built = true
				info.State = st.KeysOf(store.KindState)
				info.Getters = st.KeysOf(store.KindGetter)
				info.Actions = st.KeysOf(store.KindAction)
			}
			infos = append(infos, info)
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"stores": infos})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var state map[string]map[string]any
	_ = s.Do(func(reg *store.Registry) error {
		state = reg.State()
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleStoreState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var state map[string]any
	err := s.Do(func(*store.Registry) error {
		st, err := s.resolve(id)
		if err != nil {
			return err
		}
		state = st.State()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body: " + err.Error()})
		return
	}

	var state map[string]any
	err := s.Do(func(*store.Registry) error {
		st, err := s.resolve(id)
		if err != nil {
			return err
		}
		if err := st.Patch(partial); err != nil {
			return err
		}
		state = st.State()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type actionRequest struct {
	Args []any `json:"args"`
}

type actionResponse struct {
	Result any            `json:"result"`
	State  map[string]any `json:"state"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	var req actionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body: " + err.Error()})
			return
		}
	}

	var (
		st     *store.Store
		result any
	)
	err := s.Do(func(*store.Registry) error {
		var err error
		st, err = s.resolve(id)
		if err != nil {
			return err
		}
		result, err = st.Call(name, req.Args...)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if d, ok := result.(*store.Deferred); ok {
		result, err = d.Await(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		// Settling may have written state from another goroutine.
		_ = s.Do(func(*store.Registry) error { return nil })
	}

	var state map[string]any
	_ = s.Do(func(*store.Registry) error {
		state = st.State()
		return nil
	})
	writeJSON(w, http.StatusOK, actionResponse{Result: result, State: state})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The snapshot is taken under the lock so no mutation frame can be
	// queued between it and the client joining the hub.
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(Frame{Type: "snapshot", Stores: s.registry.State()})
	if err != nil {
		s.logger.Error("snapshot encode failed", "error", err)
		conn.Close()
		return
	}
	s.hub.attach(conn, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON. Coded errors use their registered
// formatting and a status derived from the code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var coded *errors.Error
	if !stderrors.As(err, &coded) {
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(coded.Code))
	_, _ = w.Write([]byte(coded.FormatJSON()))
}

func statusFor(code string) int {
	switch code {
	case "E004", "E005", "E009":
		return http.StatusNotFound
	case "E006", "E007":
		return http.StatusUnprocessableEntity
	case "E002":
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
