package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"wbcatalog/internal/catalog/storage"
	"wbcatalog/pkg/logger"
)

const recordTimeout = 5 * time.Second

// ErrBusy - другой запуск ещё не закончился.
var ErrBusy = errors.New("ingestion already running")

// Request - параметры запуска от CLI, HTTP или планировщика.
type Request struct {
	Query    string `json:"query" validate:"required,max=200"`
	Pages    int    `json:"pages" validate:"gte=0"`
	Category string `json:"category" validate:"max=255"`
	Policy   string `json:"policy" validate:"omitempty,oneof=skip overwrite"`
}

// RunRecorder пишет журнал запусков.
type RunRecorder interface {
	Record(ctx context.Context, run storage.RunRecord) (int64, error)
}

// Service - единственная точка запуска ingest. Запуски не пересекаются.
type Service struct {
	pipeline *Pipeline
	validate *validator.Validate
	maxPages int
	recorder RunRecorder
	mu       sync.Mutex
	log      logger.Logger
}

func NewService(pipeline *Pipeline, maxPages int, log logger.Logger) *Service {
	return &Service{
		pipeline: pipeline,
		validate: validator.New(),
		maxPages: maxPages,
		log:      log.WithPrefix("[Ingest]"),
	}
}

// SetRecorder включает журнал запусков. nil выключает.
func (s *Service) SetRecorder(r RunRecorder) {
	s.recorder = r
}

func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validate.Struct(req); err != nil {
		return Result{Query: req.Query}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Pages == 0 {
		req.Pages = 1
	}
	if s.maxPages > 0 && req.Pages > s.maxPages {
		return Result{Query: req.Query}, fmt.Errorf("%w: pages must be <= %d, got %d", ErrInvalidRequest, s.maxPages, req.Pages)
	}

	if !s.mu.TryLock() {
		return Result{Query: req.Query}, ErrBusy
	}
	defer s.mu.Unlock()

	pipeline := s.pipeline
	if req.Policy != "" && req.Policy != pipeline.Policy() {
		pipeline = pipeline.WithPolicy(req.Policy)
	}

	startedAt := time.Now().UTC()
	result, err := pipeline.Run(ctx, req.Query, req.Pages, req.Category)
	if err != nil {
		s.log.Error("Ingestion %q stopped: %v", req.Query, err)
	}
	s.record(ctx, result.Record(startedAt, time.Now().UTC(), err))
	return result, err
}

// record: сбой журнала не влияет на результат запуска.
func (s *Service) record(ctx context.Context, run storage.RunRecord) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if _, err := s.recorder.Record(ctx, run); err != nil {
		s.log.Warn("Failed to record ingestion %q: %v", run.Query, err)
	}
}
