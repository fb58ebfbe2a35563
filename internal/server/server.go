// Package server exposes a store.Store over HTTP, with a websocket per
// subscription for realtime snapshots.
//
//	GET    /healthz
//	POST   /v1/collections/:collection/documents
//	PATCH  /v1/collections/:collection/documents/:id
//	DELETE /v1/collections/:collection/documents/:id
//	GET    /v1/collections/:collection/listen   (websocket)
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// InsertResponse is the body of a successful insert.
type InsertResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status,omitempty"`
}

// Server serves one store.
type Server struct {
	store    store.Store
	log      *log.Logger
	schemas  map[string]Schemas
	upgrader websocket.Upgrader
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and fault logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSchemas validates writes to collection against sc.
func WithSchemas(collection string, sc Schemas) Option {
	return func(s *Server) { s.schemas[collection] = sc }
}

// New builds the router for st.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:   st,
		log:     logging.Discard(),
		schemas: make(map[string]Schemas),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", s.health)

	v1 := r.Group("/v1/collections/:collection")
	v1.POST("/documents", s.insert)
	v1.PATCH("/documents/:id", s.update)
	v1.DELETE("/documents/:id", s.delete)
	v1.GET("/listen", s.listen)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) insert(c *gin.Context) {
	collection := c.Param("collection")
	fields := store.Fields{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := validate(s.schemas[collection].Create, fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	id, err := s.store.Insert(c.Request.Context(), collection, fields)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, InsertResponse{ID: id})
}

func (s *Server) update(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	fields := store.Fields{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := validate(s.schemas[collection].Update, fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := s.store.Update(c.Request.Context(), collection, id, fields); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) delete(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("collection"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	}
	s.log.Error("store request failed", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
