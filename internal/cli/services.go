package cli

import (
	"context"
	"fmt"

	"tailorcv/internal/ai"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
	"tailorcv/internal/research"
	"tailorcv/internal/storage"
	"tailorcv/internal/workflow"
)

// services are the long-lived collaborators a command may need. Fields
// stay nil when the command did not ask for them.
type services struct {
	analyzer  *ai.Service
	tailor    *ai.Service
	evaluator *ai.Service
	store     storage.Store
	workflow  *workflow.Workflow
}

// Close releases everything that was opened.
func (s *services) Close() {
	for _, svc := range []*ai.Service{s.analyzer, s.tailor, s.evaluator} {
		if svc != nil {
			_ = svc.Close()
		}
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *services) aiStatus() []*ai.Service {
	var out []*ai.Service
	for _, svc := range []*ai.Service{s.analyzer, s.tailor, s.evaluator} {
		if svc != nil {
			out = append(out, svc)
		}
	}
	return out
}

// newAIService creates the service for one operation, recording into rec
// when it is non-nil.
func newAIService(cfg *config.Config, op string, logger *errors.Logger, rec ai.Recorder) (*ai.Service, error) {
	opCfg, err := cfg.Operation(op)
	if err != nil {
		return nil, err
	}
	svc, err := ai.NewService(&opCfg, op, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI service for %s: %w", op, err)
	}
	if rec != nil {
		svc = svc.WithRecorder(rec)
	}
	return svc, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *errors.Logger) (storage.Store, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Storage opened", "driver", cfg.Storage.Driver)
	return store, nil
}

// newResearcher returns nil, without error, when research is unavailable.
// Generation continues without a company brief in that case.
func newResearcher(ctx context.Context, cfg *config.Config, logger *errors.Logger) workflow.CompanyResearcher {
	if err := cfg.RequireResearch(); err != nil {
		logger.Debug("Company research unavailable", "reason", err.Error())
		return nil
	}
	r, err := research.NewFromConfig(ctx, cfg.Research, logger)
	if err != nil {
		logger.Warn("Company research disabled", "error", err.Error())
		return nil
	}
	return r
}

// newServices builds the AI services, the store and the workflow.
func newServices(ctx context.Context, cfg *config.Config, logger *errors.Logger, metrics workflowMetrics) (*services, error) {
	if err := cfg.RequireAI(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, err.Error(), nil)
	}

	s := &services{}
	var rec ai.Recorder
	if metrics != nil {
		rec = metrics
	}

	var err error
	if s.analyzer, err = newAIService(cfg, config.OperationAnalyze, logger, rec); err != nil {
		s.Close()
		return nil, err
	}
	if s.tailor, err = newAIService(cfg, config.OperationTailor, logger, rec); err != nil {
		s.Close()
		return nil, err
	}
	if s.evaluator, err = newAIService(cfg, config.OperationEvaluate, logger, rec); err != nil {
		s.Close()
		return nil, err
	}
	if s.store, err = openStore(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}

	deps := workflow.Deps{
		Analyzer: s.analyzer,
		Tailor:   s.tailor,
		Fetcher:  research.NewFetcher(cfg.Research),
		Store:    s.store,
	}
	if r := newResearcher(ctx, cfg, logger); r != nil {
		deps.Researcher = r
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	s.workflow = workflow.New(deps, logger)
	return s, nil
}

// workflowMetrics is what the observability metrics provide to services.
type workflowMetrics interface {
	ai.Recorder
	workflow.Metrics
}
