// Package app wires the record stream and the checkpoint watcher to the
// model side for each run mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/internal/ports"
	"github.com/bft-labs/birdrec/pkg/checkpoint"
	"github.com/bft-labs/birdrec/pkg/log"
	"github.com/bft-labs/birdrec/pkg/stream"
)

// Run modes.
const (
	ModeTrain   = "train"
	ModeEval    = "eval"
	ModePredict = "predict"
	ModeReturn  = "return"
)

// RunConfig contains configuration for one run.
type RunConfig struct {
	// TFRPath is the record prefix from the data config.
	TFRPath  string
	FreqBins int
	ModelDir string

	BatchSize     int
	Prefetch      int
	ShuffleBuffer int
	Augment       bool
	Threshold     bool
	// Steps is the number of training batches; zero trains until cancelled.
	Steps int
	// Seed seeds the train shuffle; zero uses the clock.
	Seed int64

	PollInterval time.Duration
	// EvalTimeout ends evaluation when no new checkpoint appears within it.
	EvalTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithTrainer sets the collaborator for train mode.
func WithTrainer(t ports.Trainer) Option { return func(r *Runner) { r.trainer = t } }

// WithEvaluator sets the collaborator for eval mode.
func WithEvaluator(e ports.Evaluator) Option { return func(r *Runner) { r.evaluator = e } }

// WithPredictor sets the collaborator for predict mode.
func WithPredictor(p ports.Predictor) Option { return func(r *Runner) { r.predictor = p } }

// WithEvalState makes eval mode resume after the last checkpoint saved in repo.
func WithEvalState(repo ports.EvalStateRepository) Option {
	return func(r *Runner) { r.evalState = repo }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option { return func(r *Runner) { r.logger = log.OrNoop(l) } }

// WithMetrics sets the metrics passed on to streams and watchers.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// Runner dispatches a run mode to its collaborators.
type Runner struct {
	config    RunConfig
	trainer   ports.Trainer
	evaluator ports.Evaluator
	predictor ports.Predictor
	evalState ports.EvalStateRepository
	logger    log.Logger
	metrics   *metrics.Metrics

	openStream  func(ctx context.Context, opts stream.Options) (ports.BatchSource, error)
	openWatcher func(dir string, opts ...checkpoint.Option) ports.CheckpointSource
}

// NewRunner creates a Runner for config.
func NewRunner(config RunConfig, opts ...Option) *Runner {
	r := &Runner{
		config: config,
		logger: log.NewNoopLogger(),
		openStream: func(ctx context.Context, opts stream.Options) (ports.BatchSource, error) {
			return stream.Open(ctx, opts)
		},
		openWatcher: func(dir string, opts ...checkpoint.Option) ports.CheckpointSource {
			return checkpoint.NewWatcher(dir, opts...)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes mode. Unknown modes are logged and ignored; "return" runs
// nothing and leaves the collaborators to the caller.
func (r *Runner) Run(ctx context.Context, mode string) error {
	logger := r.logger.With(log.String("mode", mode))
	switch mode {
	case ModeTrain:
		return r.train(ctx, logger)
	case ModeEval:
		return r.eval(ctx, logger)
	case ModePredict:
		return r.predict(ctx, logger)
	case ModeReturn:
		logger.Info("nothing to run, returning")
		return nil
	default:
		logger.Warn("mode unknown, doing nothing")
		return nil
	}
}

func (r *Runner) streamOptions(subset domain.Subset) stream.Options {
	opts := stream.Options{
		Prefix:        r.config.TFRPath,
		Subset:        subset,
		BatchSize:     r.config.BatchSize,
		FreqBins:      r.config.FreqBins,
		Threshold:     r.config.Threshold,
		ShuffleBuffer: r.config.ShuffleBuffer,
		Prefetch:      r.config.Prefetch,
		Logger:        r.logger,
		Metrics:       r.metrics,
	}
	if subset == domain.SubsetTrain {
		opts.Augment = r.config.Augment
		if r.config.Seed != 0 {
			opts.Rand = rand.New(rand.NewSource(r.config.Seed))
		}
	}
	return opts
}

func (r *Runner) train(ctx context.Context, logger log.Logger) (err error) {
	if r.trainer == nil {
		return fmt.Errorf("%w: no trainer configured", domain.ErrConfig)
	}
	src, err := r.openStream(ctx, r.streamOptions(domain.SubsetTrain))
	if err != nil {
		return fmt.Errorf("open train stream: %w", err)
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	logger.Info("training", log.Int("steps", r.config.Steps), log.Bool("augment", r.config.Augment))
	if err := r.trainer.Train(ctx, src, r.config.Steps); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return nil
}

func (r *Runner) eval(ctx context.Context, logger log.Logger) (err error) {
	if r.evaluator == nil {
		return fmt.Errorf("%w: no evaluator configured", domain.ErrConfig)
	}

	var state domain.EvalState
	if r.evalState != nil {
		if state, err = r.evalState.Load(ctx); err != nil {
			logger.Warn("failed to load eval state, starting from the first checkpoint", log.Err(err))
			state = domain.EvalState{}
		}
	}

	wopts := []checkpoint.Option{
		checkpoint.WithPollInterval(r.config.PollInterval),
		checkpoint.WithTimeout(r.config.EvalTimeout),
		checkpoint.WithLogger(r.logger),
		checkpoint.WithMetrics(r.metrics),
	}
	if state.HasStep() {
		logger.Info("resuming evaluation", log.Int64("after_step", state.LastStep))
		wopts = append(wopts, checkpoint.WithStartAfter(state.LastStep))
	}
	w := r.openWatcher(r.config.ModelDir, wopts...)
	defer func() { err = errors.Join(err, w.Close()) }()

	for {
		step, err := w.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			logger.Info("training finished, evaluation done", log.Int("evaluated", state.Evaluated))
			return nil
		case errors.Is(err, checkpoint.ErrTimeout):
			logger.Info("no new checkpoint, evaluation done",
				log.Duration("timeout", r.config.EvalTimeout),
				log.Int("evaluated", state.Evaluated))
			return nil
		case err != nil:
			return err
		}

		logger.Info("evaluating checkpoint", log.Int64("step", step))
		if err := r.evalOne(ctx, step); err != nil {
			return err
		}

		state.LastStep = step
		state.Evaluated++
		state.UpdatedAt = time.Now().UTC()
		if r.evalState != nil {
			if err := r.evalState.Save(ctx, state); err != nil {
				logger.Error("failed to save eval state", log.Err(err))
			}
		}
	}
}

func (r *Runner) evalOne(ctx context.Context, step int64) (err error) {
	src, err := r.openStream(ctx, r.streamOptions(domain.SubsetDev))
	if err != nil {
		return fmt.Errorf("open dev stream: %w", err)
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	if err := r.evaluator.Evaluate(ctx, step, src); err != nil {
		return fmt.Errorf("evaluate checkpoint %d: %w", step, err)
	}
	return nil
}

func (r *Runner) predict(ctx context.Context, logger log.Logger) (err error) {
	if r.predictor == nil {
		return fmt.Errorf("%w: no predictor configured", domain.ErrConfig)
	}
	src, err := r.openStream(ctx, r.streamOptions(domain.SubsetDev))
	if err != nil {
		return fmt.Errorf("open dev stream: %w", err)
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	logger.Info("predicting on dev records")
	if err := r.predictor.Predict(ctx, src); err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	return nil
}
