package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/logging"
)

const maxBodyBytes = 64 << 10

// Options configures a Server.
type Options struct {
	Repository *Repository
	Logger     logging.Logger
	// Registry receives the server metrics and backs /metrics. Nil creates
	// a private registry.
	Registry *prometheus.Registry
	// IdentityName, when set, is returned as the visitor's profile by the
	// identity endpoint. Empty means no identity provider.
	IdentityName string
}

// Server is the CubeSpace document store HTTP API.
type Server struct {
	repo      *Repository
	validator *Validator
	hub       *hub
	metrics   *Metrics
	registry  *prometheus.Registry
	log       logging.Logger
	identity  string
	upgrader  websocket.Upgrader

	// writeMu orders each write with the snapshot broadcast that follows it,
	// and orders feed registration with its first snapshot.
	writeMu sync.Mutex
}

// New builds a Server.
func New(opts Options) (*Server, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		repo:      opts.Repository,
		validator: validator,
		metrics:   metrics,
		registry:  reg,
		log:       log.With(logging.String("component", "docserver")),
		identity:  strings.TrimSpace(opts.IdentityName),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.hub = newHub(func(collection string, n int) {
		metrics.FeedClients.WithLabelValues(collection).Set(float64(n))
	})
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/anonymous", s.instrument("auth_anonymous", http.HandlerFunc(s.handleAnonymous)))
	mux.Handle("POST /api/auth/identity", s.instrument("auth_identity", s.requireSession(http.HandlerFunc(s.handleIdentity))))
	mux.Handle("GET /api/cubes", s.instrument("list_cubes", gzhttp.GzipHandler(http.HandlerFunc(s.handleListCubes))))
	mux.Handle("GET /api/owners", s.instrument("list_owners", gzhttp.GzipHandler(http.HandlerFunc(s.handleListOwners))))
	mux.Handle("POST /api/owners", s.instrument("create_owner", s.requireSession(http.HandlerFunc(s.handleCreateOwner))))
	mux.Handle("POST /api/cubes", s.instrument("create_cube", s.requireSession(http.HandlerFunc(s.handleCreateCube))))
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// CloseFeeds disconnects every feed client. http.Server.Shutdown does not
// touch hijacked connections, so call this alongside it.
func (s *Server) CloseFeeds() {
	s.hub.closeAll()
}

func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	token, err := s.repo.CreateSession(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docstore.TokenResponse{Token: token})
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if s.identity == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, docstore.Profile{Name: s.identity})
}

func (s *Server) handleListCubes(w http.ResponseWriter, r *http.Request) {
	cubes, err := s.repo.ListCubes(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docstore.ListResponse[cube.RemoteCubeView]{Items: cubes})
}

func (s *Server) handleListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := s.repo.ListOwners(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docstore.ListResponse[cube.RemoteOwnerView]{Items: owners})
}

func (s *Server) handleCreateOwner(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, s.validator.Owner)
	if !ok {
		return
	}
	var in docstore.OwnerInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	owner, err := s.repo.CreateOwner(r.Context(), in)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.metrics.Writes.WithLabelValues(docstore.CollectionOwners).Inc()
	s.publishLocked(r.Context(), docstore.CollectionOwners)
	writeJSON(w, http.StatusCreated, docstore.OwnerCreated{OwnerID: owner.OwnerID})
}

func (s *Server) handleCreateCube(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, s.validator.Cube)
	if !ok {
		return
	}
	var in docstore.CubeInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	c, err := s.repo.CreateCube(r.Context(), in)
	if errors.Is(err, ErrUnknownOwner) {
		writeError(w, http.StatusUnprocessableEntity, "unknown owner")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.metrics.Writes.WithLabelValues(docstore.CollectionCubes).Inc()
	s.publishLocked(r.Context(), docstore.CollectionCubes)
	writeJSON(w, http.StatusCreated, docstore.CubeCreated{RemoteID: c.RemoteID})
}

// handleFeed upgrades to a websocket and streams full snapshots of one
// collection: the current one on connect, then one after every write.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	collection := r.URL.Query().Get("collection")
	if collection != docstore.CollectionCubes && collection != docstore.CollectionOwners {
		writeError(w, http.StatusBadRequest, "collection must be cubes or owners")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.writeMu.Lock()
	c := s.hub.add(collection)
	frame, err := s.snapshotFrame(r.Context(), collection)
	if err == nil {
		s.hub.send(c, frame)
	}
	s.writeMu.Unlock()
	defer s.hub.remove(c)
	if err != nil {
		s.log.Error(r.Context(), "initial snapshot failed", logging.Err(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot failed"),
			time.Now().Add(time.Second))
		return
	}
	s.log.Debug(r.Context(), "feed client connected", logging.String("collection", collection))

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-c.done:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					c.close()
					return
				}
			}
		}
	}()

	// Reader loop: clients send nothing, but reading surfaces disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.log.Debug(r.Context(), "feed client disconnected", logging.String("collection", collection))
}

// publishLocked broadcasts the collection's current snapshot. Callers hold
// writeMu.
func (s *Server) publishLocked(ctx context.Context, collection string) {
	if s.hub.count(collection) == 0 {
		return
	}
	frame, err := s.snapshotFrame(ctx, collection)
	if err != nil {
		s.log.Error(ctx, "snapshot for broadcast failed", logging.String("collection", collection), logging.Err(err))
		return
	}
	s.hub.broadcast(collection, frame)
}

func (s *Server) snapshotFrame(ctx context.Context, collection string) ([]byte, error) {
	var (
		records any
		err     error
	)
	switch collection {
	case docstore.CollectionCubes:
		records, err = s.repo.ListCubes(ctx)
	default:
		records, err = s.repo.ListOwners(ctx)
	}
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return json.Marshal(docstore.FeedMessage{
		Type:       "snapshot",
		Collection: collection,
		Seq:        s.hub.nextSeq(collection),
		Records:    raw,
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		valid, err := s.repo.ValidSession(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if !valid {
			writeError(w, http.StatusUnauthorized, "unknown session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, validate func([]byte) error) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	if err := validate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error(r.Context(), "request failed",
		logging.String("method", r.Method), logging.String("path", r.URL.Path), logging.Err(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, docstore.ErrorResponse{Error: msg})
}
