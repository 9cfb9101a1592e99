// Package api exposes the HTTP boundary: upload, process and status routes
// plus the local download route backing in-memory signed URLs.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/dverran/audiodrop/internal/apperr"
	"github.com/dverran/audiodrop/internal/config"
	"github.com/dverran/audiodrop/internal/lifecycle"
	"github.com/dverran/audiodrop/internal/model"
	"github.com/dverran/audiodrop/internal/objectstore"
	"github.com/dverran/audiodrop/internal/queue"
	"github.com/dverran/audiodrop/internal/signing"
)

// envelope is the uniform response shape for every route.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// queuedResult is returned when async processing accepts a job; Status is
// the asset's state at enqueue time, progress is reported by GetStatus.
type queuedResult struct {
	Status model.AssetStatus `json:"status"`
}

// Options carries the optional collaborators picked at startup.
type Options struct {
	// Queue enables async processing when non-nil: POST /process enqueues
	// instead of running the transform inline.
	Queue *asynq.Client
	// LocalStore and Signer enable the local download route when the
	// in-memory object store is active.
	LocalStore *objectstore.Memory
	Signer     *signing.Signer
}

// Server wires the orchestrator to gin.
type Server struct {
	cfg    *config.Config
	orch   *lifecycle.Orchestrator
	logger *slog.Logger
	opts   Options
	engine *gin.Engine
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, orch *lifecycle.Orchestrator, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, orch: orch, logger: logger, opts: opts}
	s.engine = s.buildEngine()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.engine,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildEngine() *gin.Engine {
	if !s.cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", s.handleHealth)

	audio := engine.Group("/api/audio")
	audio.POST("/upload", s.handleUpload)
	audio.POST("/process/:id", s.handleProcess)
	audio.GET("/status/:id", s.handleStatus)

	if s.opts.LocalStore != nil && s.opts.Signer != nil {
		engine.GET("/local/download/:bucket/:key", s.handleLocalDownload)
	}
	return engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleUpload(c *gin.Context) {
	// Cap the body before multipart parsing; slack covers form framing.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxFileSizeBytes+64<<10)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// A body over the cap trips the reader during multipart parsing and
		// would otherwise masquerade as a missing file.
		if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
			s.respondError(c, apperr.New(apperr.KindInvalidInput,
				fmt.Sprintf("file exceeds limit of %d bytes", s.cfg.MaxFileSizeBytes)))
			return
		}
		s.respondError(c, apperr.New(apperr.KindInvalidInput, "no file received"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, apperr.Wrap(apperr.KindInvalidInput, "unreadable file payload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
			s.respondError(c, apperr.New(apperr.KindInvalidInput,
				fmt.Sprintf("file exceeds limit of %d bytes", s.cfg.MaxFileSizeBytes)))
			return
		}
		s.respondError(c, apperr.Wrap(apperr.KindInvalidInput, "unreadable file payload", err))
		return
	}

	res, err := s.orch.Upload(c.Request.Context(), lifecycle.UploadInput{
		Data:         data,
		OriginalName: fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		SizeBytes:    int64(len(data)),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Success: true, Data: res})
}

func (s *Server) handleProcess(c *gin.Context) {
	id := c.Param("id")

	if s.opts.Queue != nil {
		// Async mode: hand the job to the worker. Unknown ids are rejected
		// here, not left for the worker to discover after the client got a
		// 202 that would never be reconciled.
		status, err := s.orch.Lookup(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		payload := queue.ProcessPayload{AssetID: id}
		if err := queue.EnqueueProcess(c.Request.Context(), s.opts.Queue, payload); err != nil {
			s.respondError(c, apperr.Wrap(apperr.KindProcessing, "failed to queue processing", err))
			return
		}
		c.JSON(http.StatusAccepted, envelope{Success: true, Data: queuedResult{Status: status}})
		return
	}

	res, err := s.orch.Process(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: res})
}

func (s *Server) handleStatus(c *gin.Context) {
	res, err := s.orch.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: res})
}

// handleLocalDownload resolves signed URLs issued by the in-memory store. It
// enforces the HMAC signature and the embedded expiry, mirroring what a real
// object store does with presigned links.
func (s *Server) handleLocalDownload(c *gin.Context) {
	bucket := c.Param("bucket")
	key := c.Param("key")
	expires := c.Query("expires")
	signature := c.Query("signature")

	if !s.opts.Signer.Validate(bucket+"/"+key, expires, signature) {
		c.JSON(http.StatusForbidden, envelope{Success: false, Message: "invalid signature"})
		return
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > exp {
		c.JSON(http.StatusForbidden, envelope{Success: false, Message: "link expired"})
		return
	}

	data, err := s.opts.LocalStore.Get(c.Request.Context(), bucket, key)
	if err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "object not found"})
		return
	}
	_, contentType, err := s.opts.LocalStore.Stat(bucket, key)
	if err != nil || contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	message := apperr.ClientMessage(err)
	if s.cfg.DevMode {
		// Development diagnostic mode exposes the full chain.
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, envelope{Success: false, Message: message})
}
