// Package api exposes the collection store and the draw engine over HTTP
// for display and control clients. The store stays the single writer of
// the collection files; clients always go through these endpoints instead
// of touching the files.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stagedraw/stagedraw/internal/config"
	"github.com/stagedraw/stagedraw/internal/draw"
	"github.com/stagedraw/stagedraw/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store    *store.Store
	ctrl     *draw.Controller
	defaults config.DrawConfig
	logger   *slog.Logger
}

// NewServer creates a server over s and ctrl. defaults fills draw options
// the start request leaves unset.
func NewServer(s *store.Store, ctrl *draw.Controller, defaults config.DrawConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, ctrl: ctrl, defaults: defaults, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	api.GET("/collections/:name", s.getCollection)
	api.PUT("/collections/:name", s.putCollection)
	api.DELETE("/collections/:name", s.deleteCollection)
	api.DELETE("/collections/:name/:id", s.deleteRecord)
	api.POST("/collections/batch-fetch", s.batchFetch)
	api.POST("/collections/batch-save", s.batchSave)
	api.POST("/winners/:id/pickup", s.setPickedUp)
	api.GET("/draw/state", s.drawState)
	api.POST("/draw/start", s.startDraw)
	api.POST("/draw/cancel", s.cancelDraw)
	api.POST("/draw/undo", s.undoDraw)
	return r
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("api listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeDrawError maps a draw engine error onto an HTTP status. Validation
// failures are client errors; lifecycle refusals are conflicts.
func (s *Server) writeDrawError(c *gin.Context, err error) {
	code := draw.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case draw.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case draw.ErrCodePrizeNotFound:
		status = http.StatusNotFound
	case draw.ErrCodeInsufficientEntries, draw.ErrCodeInsufficientPrizeQuantity:
		status = http.StatusUnprocessableEntity
	case draw.ErrCodeDrawInProgress, draw.ErrCodeCancelDuringReveal,
		draw.ErrCodeNothingToUndo, draw.ErrCodePrizeConflict:
		status = http.StatusConflict
	}
	if code == "" {
		code = "INTERNAL"
	}
	c.JSON(status, errorBody{Error: string(code), Message: err.Error()})
}

func unknownCollection(c *gin.Context, name string) {
	c.JSON(http.StatusNotFound, errorBody{
		Error:   "UNKNOWN_COLLECTION",
		Message: fmt.Sprintf("no collection named %q", name),
	})
}
