// Package server exposes a Trainer over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scalar-autograd/nn"
	"scalar-autograd/train"
)

// maxEpochsPerCall bounds the work one /api/train request may ask for.
const maxEpochsPerCall = 10000

var errNotInitialized = errors.New("model not initialized")

// Server owns HTTP handlers and the active trainer.
//
// The trainer pointer is swapped under mu; the trainer itself serializes
// forward and backward passes, so handlers never build graphs concurrently
// on the same parameters.
type Server struct {
	mu      sync.RWMutex
	trainer *train.Trainer

	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *train.Metrics
}

// NewServer creates a server with no model. Metrics are registered once on
// a private registry and shared by every trainer it creates.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return &Server{
		logger:   logger,
		registry: reg,
		metrics:  train.NewMetrics(reg),
	}
}

// Router builds a gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes attaches all endpoints to r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/init", s.handleInit)
	api.POST("/train", s.handleTrain)
	api.POST("/predict", s.handlePredict)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// snapshot reads the current trainer with a shared lock.
func (s *Server) snapshot() (*train.Trainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trainer == nil {
		return nil, errNotInitialized
	}
	return s.trainer, nil
}

// setTrainer swaps the active trainer with an exclusive lock.
func (s *Server) setTrainer(t *train.Trainer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainer = t
}

// bindOptionalJSON decodes JSON when a body is present.
// Empty bodies are treated as "use defaults" rather than errors.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleInit(c *gin.Context) {
	var req InitRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	t, err := s.buildTrainer(req)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	s.setTrainer(t)
	s.logger.Info("model initialized", "run_id", t.ID, "model", t.Model().String())

	c.JSON(http.StatusOK, InitResponse{
		Status: "initialized",
		Params: len(t.Model().Parameters()),
		RunID:  t.ID,
		Model:  t.Model().String(),
	})
}

func (s *Server) buildTrainer(req InitRequest) (*train.Trainer, error) {
	cfg := train.DefaultConfig()
	if len(req.Layers) > 0 {
		cfg.Layers = req.Layers
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Optimizer != "" {
		cfg.Optimizer = req.Optimizer
	}
	if req.LearningRate != 0 {
		cfg.LearningRate = req.LearningRate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nin := req.Nin
	if nin == 0 {
		nin = cfg.Dataset.Width()
	}
	model, err := nn.NewMLP(rand.New(rand.NewSource(cfg.Seed)), nin, cfg.Layers...)
	if err != nil {
		return nil, err
	}
	opt, err := train.NewOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	return train.NewTrainer(model, opt,
		train.WithLogger(s.logger),
		train.WithMetrics(s.metrics),
	), nil
}

func (s *Server) handleTrain(c *gin.Context) {
	t, err := s.snapshot()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	epochs := req.Epochs
	if epochs <= 0 {
		epochs = 1
	}
	if epochs > maxEpochsPerCall {
		writeError(c, http.StatusBadRequest, fmt.Errorf("epochs must be <= %d, got %d", maxEpochsPerCall, epochs))
		return
	}

	ds := train.Dataset{Inputs: req.Inputs, Targets: req.Targets}
	res, err := t.Run(c.Request.Context(), epochs, ds)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, TrainResponse{RunID: t.ID, StepResult: res})
}

func (s *Server) handlePredict(c *gin.Context) {
	t, err := s.snapshot()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	preds, err := t.Predict(req.Inputs)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, PredictResponse{Predictions: preds})
}
