package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/codestream/internal/align"
	"github.com/samcharles93/codestream/internal/framefile"
	"github.com/samcharles93/codestream/internal/generate"
	"github.com/samcharles93/codestream/internal/logger"
)

type Server struct {
	store   *GenerationStore
	service *GenerationService
	metrics http.Handler
	log     logger.Logger
	clock   func() time.Time

	wg sync.WaitGroup
}

type ServerOption func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func NewServer(store *GenerationStore, service *GenerationService, opts ...ServerOption) *Server {
	if store == nil {
		store = NewGenerationStore()
	}
	s := &Server{
		store:   store,
		service: service,
		log:     logger.Discard(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		e.GET("/metrics", s.handleMetrics)
	}

	e.POST("/v1/generations", s.handleCreateGeneration)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.DELETE("/v1/generations/:id", s.handleDeleteGeneration)
	e.POST("/v1/generations/:id/cancel", s.handleCancelGeneration)
	e.GET("/v1/generations/:id/frame", s.handleGetFrame)
}

// Shutdown cancels background generations and waits for them to record
// their partial results.
func (s *Server) Shutdown(ctx context.Context) error {
	if n := s.store.CancelAll(); n > 0 {
		s.log.Info("cancelling running generations", "count", n)
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	s.metrics.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) handleCreateGeneration(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, ErrorBody{Type: errTypeServer, Message: "generation service not configured"})
	}
	req, err := decodeRequest[GenerationRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	background, stream := boolValue(req.Background), boolValue(req.Stream)
	if stream && background {
		return writeBadRequest(c, "streaming background generations is not supported")
	}
	cfg, err := s.service.Config(&req)
	if err != nil {
		return writeServiceError(c, err)
	}

	gen := Generation{
		ID:         newGenerationID(),
		Object:     "generation",
		CreatedAt:  s.clock().Unix(),
		Status:     StatusInProgress,
		Codebooks:  cfg.Codebooks,
		VocabSize:  cfg.VocabSize,
		MaxSteps:   cfg.MaxSteps,
		Background: background,
		Metadata:   req.Metadata,
	}
	log := s.log.With("generation", gen.ID)

	if background {
		ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
		s.store.Create(gen, cancel)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer cancel()
			res, err := s.service.Run(ctx, cfg, req.Prompt, nil)
			s.finish(log, gen, res, err)
		}()
		log.Info("generation queued", "codebooks", cfg.Codebooks, "max_steps", cfg.MaxSteps)
		return c.JSON(http.StatusAccepted, gen)
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	s.store.Create(gen, cancel)

	if stream {
		return s.streamGeneration(ctx, cancel, c, log, gen, cfg, req.Prompt)
	}

	res, runErr := s.service.Run(ctx, cfg, req.Prompt, nil)
	final := s.finish(log, gen, res, runErr)
	if res == nil && runErr != nil {
		return writeServiceError(c, runErr)
	}
	return c.JSON(http.StatusOK, final)
}

func (s *Server) streamGeneration(ctx context.Context, cancel context.CancelFunc, c *echo.Context, log logger.Logger, gen Generation, cfg generate.Config, prompt []int) error {
	writer, err := NewSSEStreamWriter(c)
	if err != nil {
		s.finish(log, gen, nil, err)
		return writeBadRequest(c, err.Error())
	}
	obs := &sseObserver{w: writer, cancel: cancel}
	if err := writer.Begin(gen); err != nil {
		obs.err = err
		cancel()
	}
	res, runErr := s.service.Run(ctx, cfg, prompt, obs)
	final := s.finish(log, gen, res, runErr)
	if obs.err != nil {
		log.Debug("stream client went away", "error", obs.err)
		return nil
	}
	if err := writer.Finish(final); err != nil {
		log.Debug("write final event", "error", err)
	}
	return nil
}

// finish stores the outcome and returns the generation with its frame
// inlined.
func (s *Server) finish(log logger.Logger, gen Generation, res *generate.Result, err error) Generation {
	frame := applyResult(&gen, res, err, s.clock())
	if !s.store.Finish(gen, frame) {
		log.Debug("generation deleted before it finished")
	}
	if gen.Status == StatusFailed {
		log.Warn("generation failed", "stop", gen.StopReason, "error", err)
	} else {
		log.Info("generation finished", "status", gen.Status, "stop", gen.StopReason, "frame_length", gen.FrameLength)
	}
	gen.Frame = frame
	return gen
}

// handleGetGeneration returns the current record. With ?wait=true it blocks
// until the generation finishes or the client goes away.
func (s *Server) handleGetGeneration(c *echo.Context) error {
	id := c.Param("id")
	var (
		gen Generation
		ok  bool
	)
	if c.QueryParam("wait") == "true" {
		gen, ok = s.store.Wait(c.Request().Context(), id)
	} else {
		gen, ok = s.store.Get(id)
	}
	if !ok {
		return writeNotFound(c, id)
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, id)
	}
	return c.JSON(http.StatusOK, deleteResponse{ID: id, Object: "generation.deleted", Deleted: true})
}

func (s *Server) handleCancelGeneration(c *echo.Context) error {
	id := c.Param("id")
	gen, running, ok := s.store.Cancel(id)
	if !ok {
		return writeNotFound(c, id)
	}
	if !running {
		return writeConflict(c, "generation already finished", gen.Status)
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleGetFrame(c *echo.Context) error {
	format, err := framefile.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	var rows bool
	switch layout := c.QueryParam("layout"); layout {
	case "", "flat":
	case "rows":
		rows = true
	default:
		return writeBadRequest(c, fmt.Sprintf("unknown frame layout %q (want flat or rows)", layout))
	}
	id := c.Param("id")
	frame, status, ok := s.store.Frame(id)
	if !ok {
		return writeNotFound(c, id)
	}
	if frame == nil {
		if status == StatusInProgress {
			return writeConflict(c, "generation is still running", status)
		}
		return writeError(c, http.StatusNotFound, ErrorBody{Type: errTypeNotFound, Message: "generation produced no frame", Code: status})
	}
	return writeFrame(c, frame, format, rows)
}

func writeFrame(c *echo.Context, frame *align.Frame, format framefile.Format, rows bool) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.WriteHeader(http.StatusOK)
	if rows {
		return framefile.EncodeRows(res, frame, format)
	}
	return framefile.Encode(res, frame, format)
}
