package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/supervisor"
)

// StartResponse is returned by POST /v1/start
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// StopResponse is returned by the stop endpoints
type StopResponse struct {
	Recording *models.CompletedRecording `json:"recording,omitempty"`
	Stopped   bool                       `json:"stopped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the supervisor over a loopback HTTP API so short-lived
// CLI invocations can drive the long-lived daemon.
type Server struct {
	sup  *supervisor.Supervisor
	log  *zap.Logger
	http *http.Server
}

// NewServer creates a Server listening on addr
func NewServer(addr string, sup *supervisor.Supervisor, log *zap.Logger) *Server {
	s := &Server{sup: sup, log: log}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	{
		v1.POST("/start", s.start)
		v1.POST("/stop/:id", s.stop)
		v1.POST("/stop-current", s.stopCurrent)
		v1.POST("/pause/:id", s.pause)
		v1.POST("/resume/:id", s.resume)
		v1.GET("/status", s.status)
	}

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown
func (s *Server) ListenAndServe() error {
	s.log.Info("control API listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": string(s.sup.State()), "time": time.Now()})
}

func (s *Server) start(c *gin.Context) {
	id, err := s.sup.Start()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StartResponse{SessionID: id})
}

func (s *Server) stop(c *gin.Context) {
	rec, err := s.sup.Stop(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StopResponse{Recording: &rec, Stopped: true})
}

func (s *Server) stopCurrent(c *gin.Context) {
	rec, err := s.sup.StopCurrent()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StopResponse{Recording: rec, Stopped: rec != nil})
}

func (s *Server) pause(c *gin.Context) {
	s.sup.Pause(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) resume(c *gin.Context) {
	s.sup.Resume(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.sup.Status())
}

// fail maps domain errors onto HTTP status codes
func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyRecording):
		code = http.StatusConflict
	case errors.Is(err, models.ErrInvalidSession):
		code = http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, models.ErrStartFailed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrStorageFailure):
		code = http.StatusInternalServerError
	}
	s.log.Warn("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(code, errorResponse{Error: err.Error()})
}
