package daemon

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"backtomatic/internal/archive"
	"backtomatic/internal/auth"
	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/model"
	"backtomatic/internal/repository"
	"backtomatic/internal/upload"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo     *echo.Echo
	manager  *JobManager
	histRepo *repository.HistoryRepository
	port     int
	stopCh   chan struct{}
}

func NewServer(manager *JobManager, histRepo *repository.HistoryRepository, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		manager:  manager,
		histRepo: histRepo,
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	s.echo.POST("/backups", s.handleBackup)
	s.echo.POST("/uploads", s.handleUpload)
	s.echo.GET("/jobs/:id", s.handleJob)

	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/history/stats", s.handleStats)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.manager.StopAll()
	return err
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"busy": s.manager.orch.Busy(),
		"jobs": s.manager.Snapshots(),
	})
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

type backupRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Level       string `json:"level"`
	ExcludeTemp bool   `json:"exclude_temp"`
	Encrypt     bool   `json:"encrypt"`
	Password    string `json:"password"`
	Upload      bool   `json:"upload"`
	Target      string `json:"target"`
}

func (s *Server) handleBackup(c echo.Context) error {
	var req backupRequest
	if err := c.Bind(&req); err != nil || req.Source == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source required"})
	}

	state, err := s.manager.StartBackup(backup.Job{
		Source:      req.Source,
		Destination: req.Destination,
		Level:       archive.ParseLevel(req.Level),
		ExcludeTemp: req.ExcludeTemp,
		Encrypt:     req.Encrypt,
		Password:    req.Password,
		Upload:      req.Upload,
		Target:      req.Target,
	})
	if err != nil {
		return c.JSON(StatusFor(err), map[string]string{"error": backup.Describe(err)})
	}

	return c.JSON(http.StatusAccepted, state.Snapshot())
}

type uploadRequest struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

func (s *Server) handleUpload(c echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path required"})
	}

	state, err := s.manager.StartUpload(req.Path, req.Target)
	if err != nil {
		return c.JSON(StatusFor(err), map[string]string{"error": backup.Describe(err)})
	}

	return c.JSON(http.StatusAccepted, state.Snapshot())
}

func (s *Server) handleJob(c echo.Context) error {
	snap, ok := s.manager.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	var (
		records []model.BackupRecord
		err     error
	)
	if c.QueryParam("failed") == "true" {
		records, err = s.histRepo.GetFailed()
	} else {
		records, err = s.histRepo.GetRecent(n)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.histRepo.GetStats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, stats)
}

// StatusFor maps a job start error to the HTTP status the API answers with.
func StatusFor(err error) int {
	if _, ok := errors.AsType[*backup.InvalidSourceError](err); ok {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, backup.ErrBackupBusy), errors.Is(err, upload.ErrUploadBusy):
		return http.StatusConflict
	case errors.Is(err, archive.ErrMissingPassword),
		errors.Is(err, archive.ErrNoFiles),
		errors.Is(err, backup.ErrCancelled),
		errors.Is(err, backup.ErrNoUploader),
		errors.Is(err, upload.ErrUnknownTarget),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
