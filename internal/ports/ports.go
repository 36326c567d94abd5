package ports

import (
	"context"

	"github.com/bft-labs/birdrec/internal/domain"
)

// BatchSource yields padded batches. Next returns io.EOF at the end of a
// finite pass.
type BatchSource interface {
	Next(ctx context.Context) (domain.Batch, error)
	Close() error
}

// CheckpointSource yields checkpoint steps in increasing order. Next returns
// io.EOF once the run is marked done.
type CheckpointSource interface {
	Next(ctx context.Context) (int64, error)
	Close() error
}

// Trainer consumes training batches. steps is the number of batches to
// take; zero means until the source or ctx ends.
type Trainer interface {
	Train(ctx context.Context, src BatchSource, steps int) error
}

// Evaluator evaluates the checkpoint at step on one pass of dev batches.
type Evaluator interface {
	Evaluate(ctx context.Context, step int64, src BatchSource) error
}

// Predictor produces predictions for one pass of dev batches.
type Predictor interface {
	Predict(ctx context.Context, src BatchSource) error
}

// EvalStateRepository persists the last evaluated checkpoint so a restarted
// evaluation resumes after it.
type EvalStateRepository interface {
	Load(ctx context.Context) (domain.EvalState, error)
	Save(ctx context.Context, state domain.EvalState) error
}
