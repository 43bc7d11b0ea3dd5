// Package server exposes a navigator and its scheduler over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Orrigine/OverScoped/collision"
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
	"github.com/Orrigine/OverScoped/query"
	"github.com/Orrigine/OverScoped/scheduler"
)

// Server serves one navigator.
type Server struct {
	sched   *scheduler.Scheduler
	nav     *scheduler.Navigator
	world   *collision.World
	logger  *zap.SugaredLogger
	handler http.Handler
}

// AddGeometryRequest adds one shape to the collision world.
type AddGeometryRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BuildRequest rebuilds Region, or the whole volume when it is nil.
type BuildRequest struct {
	Region *geometry.AABB `json:"region,omitempty"`
}

// PathfindRequest submits a path request.
type PathfindRequest struct {
	Start     math32.Vector3 `json:"start"`
	Goal      math32.Vector3 `json:"goal"`
	Clearance float32        `json:"clearance"`
	TimeoutMS int64          `json:"timeout_ms,omitempty"`
}

// PathResponse is a request result with its error spelled out.
type PathResponse struct {
	scheduler.Result
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// InfoResponse describes the navigator.
type InfoResponse struct {
	Name       string          `json:"name"`
	Volume     octree.Volume   `json:"volume"`
	Built      bool            `json:"built"`
	Stats      *octree.Stats   `json:"stats,omitempty"`
	Requests   scheduler.Stats `json:"requests"`
	Geometries int             `json:"geometries"`
}

// New returns a server for nav. world receives the shapes posted to
// /api/geometry and may be nil when the collision source is read-only.
func New(sched *scheduler.Scheduler, nav *scheduler.Navigator, world *collision.World, origins []string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{sched: sched, nav: nav, world: world, logger: logger}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/geometry", s.addGeometryHandler).Methods("POST")
	api.HandleFunc("/build", s.buildHandler).Methods("POST")
	api.HandleFunc("/octree", s.getOctreeHandler).Methods("GET")
	api.HandleFunc("/path", s.submitPathHandler).Methods("POST")
	api.HandleFunc("/path/{token}", s.getPathHandler).Methods("GET")
	api.HandleFunc("/path/{token}/cancel", s.cancelPathHandler).Methods("POST")
	api.HandleFunc("/info", s.infoHandler).Methods("GET")
	// subrouters do not inherit the handler of their parent
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	s.handler = c.Handler(r)
	return s
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Infow("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrQueueFull), errors.Is(err, scheduler.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, scheduler.ErrNotBuilt):
		return http.StatusConflict
	case errors.Is(err, octree.ErrInvalidVolume), errors.Is(err, octree.ErrVolumeTooSmallForDepth):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) addGeometryHandler(w http.ResponseWriter, r *http.Request) {
	if s.world == nil {
		http.Error(w, "collision world is read-only", http.StatusMethodNotAllowed)
		return
	}
	var req AddGeometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var geom geometry.Geometry
	switch req.Type {
	case geometry.TypeBox:
		var box geometry.Box
		if err := json.Unmarshal(req.Data, &box); err != nil {
			http.Error(w, "Invalid box data", http.StatusBadRequest)
			return
		}
		geom = &box
	case geometry.TypeTriangle:
		var triangle geometry.Triangle
		if err := json.Unmarshal(req.Data, &triangle); err != nil {
			http.Error(w, "Invalid triangle data", http.StatusBadRequest)
			return
		}
		geom = &triangle
	case geometry.TypeCapsule:
		var capsule geometry.Capsule
		if err := json.Unmarshal(req.Data, &capsule); err != nil {
			http.Error(w, "Invalid capsule data", http.StatusBadRequest)
			return
		}
		geom = &capsule
	default:
		http.Error(w, "Unknown geometry type", http.StatusBadRequest)
		return
	}

	s.world.Add(geom)
	bounds := geom.GetBounds()
	s.logger.Debugw("geometry added", "type", req.Type, "bounds", bounds)
	// the bounds are the region a client should rebuild
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "added", "bounds": bounds})
}

func (s *Server) buildHandler(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	tree, err := s.sched.SubmitBuild(r.Context(), s.nav, req.Region).Wait(r.Context())
	if err != nil {
		s.logger.Warnw("build request failed", "error", err)
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusOK, tree.Stats())
}

func (s *Server) getOctreeHandler(w http.ResponseWriter, r *http.Request) {
	tree := s.nav.Snapshot()
	if tree == nil {
		http.Error(w, "Octree not built", http.StatusConflict)
		return
	}
	if r.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", "application/msgpack")
		if err := tree.EncodeDump(w); err != nil {
			s.logger.Warnw("writing octree dump", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, tree.Dump())
}

func (s *Server) submitPathHandler(w http.ResponseWriter, r *http.Request) {
	var req PathfindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	token, err := s.sched.Submit(s.nav, scheduler.PathRequest{
		Start:     req.Start,
		Goal:      req.Goal,
		Clearance: req.Clearance,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uuid.UUID{"token": token})
}

func (s *Server) getPathHandler(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(mux.Vars(r)["token"])
	if err != nil {
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	}

	var res scheduler.Result
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		res, err = s.sched.Await(r.Context(), token)
	} else {
		res, err = s.sched.Poll(token)
	}
	// an await interrupted by the client still reports the current state
	if errors.Is(err, scheduler.ErrUnknownRequest) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// a terminal result is delivered once
	if res.State.Terminal() {
		s.sched.Forget(token)
	}

	resp := PathResponse{Result: res, ErrorKind: ErrorClass(res.Err)}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cancelPathHandler(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(mux.Vars(r)["token"])
	if err != nil {
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	}
	if _, err := s.sched.Poll(token); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.sched.Cancel(token)})
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	info := InfoResponse{
		Name:     s.nav.Name(),
		Volume:   s.nav.Volume(),
		Requests: s.sched.Stats(),
	}
	if s.world != nil {
		info.Geometries = s.world.Len()
	}
	if tree := s.nav.Snapshot(); tree != nil {
		st := tree.Stats()
		info.Built = true
		info.Stats = &st
	}
	writeJSON(w, http.StatusOK, info)
}

// ErrorClass names the sentinel behind a failed request, for clients that
// branch on failure kinds.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, scheduler.ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, query.ErrCancelled):
		return "cancelled"
	case errors.Is(err, query.ErrPointNotNavigable):
		return "point_not_navigable"
	case errors.Is(err, query.ErrNoPathExists):
		return "no_path_exists"
	case errors.Is(err, query.ErrClearanceExceedsVolume):
		return "clearance_exceeds_volume"
	case errors.Is(err, scheduler.ErrNotBuilt):
		return "not_built"
	default:
		return "internal"
	}
}
