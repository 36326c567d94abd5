package app

import (
	"context"
	"errors"
	"io"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/ports"
	"github.com/bft-labs/birdrec/pkg/log"
)

// defaultLogEvery is how often Train logs while consuming batches.
const defaultLogEvery = 100

// Summary describes the batches consumed by one call.
type Summary struct {
	Batches   int
	Examples  int
	Positives int
	// MaxTime is the longest padded time axis seen.
	MaxTime int
	// PaddedValues counts the zeros added by padding.
	PaddedValues int
}

func (s *Summary) add(b domain.Batch, lengths []int) {
	s.Batches++
	s.Examples += b.Size()
	for _, l := range b.Labels {
		if l != 0 {
			s.Positives++
		}
	}
	s.MaxTime = max(s.MaxTime, b.Shape[3])
	for _, n := range lengths {
		s.PaddedValues += (b.Shape[3] - n) * b.Shape[1] * b.Shape[2]
	}
}

// Summarizer is a Trainer, Evaluator and Predictor that only consumes
// batches and logs what it saw. It lets "birdrec run" exercise the whole
// input pipeline without a model.
type Summarizer struct {
	logger   log.Logger
	logEvery int

	// Last holds the summary of the most recent call.
	Last Summary
}

var (
	_ ports.Trainer   = (*Summarizer)(nil)
	_ ports.Evaluator = (*Summarizer)(nil)
	_ ports.Predictor = (*Summarizer)(nil)
)

// NewSummarizer returns a Summarizer logging to logger.
func NewSummarizer(logger log.Logger) *Summarizer {
	return &Summarizer{logger: log.OrNoop(logger), logEvery: defaultLogEvery}
}

// Train consumes steps batches, or until the source ends when steps is 0.
func (s *Summarizer) Train(ctx context.Context, src ports.BatchSource, steps int) error {
	sum, err := s.consume(ctx, src, steps, func(sum Summary) {
		if sum.Batches%s.logEvery == 0 {
			s.logger.Info("train step", log.Int("step", sum.Batches), log.Int("examples", sum.Examples))
		}
	})
	s.Last = sum
	if err != nil {
		return err
	}
	s.logSummary("training input consumed", sum)
	return nil
}

// Evaluate consumes one pass of dev batches for the checkpoint at step.
func (s *Summarizer) Evaluate(ctx context.Context, step int64, src ports.BatchSource) error {
	sum, err := s.consume(ctx, src, 0, nil)
	s.Last = sum
	if err != nil {
		return err
	}
	s.logSummary("evaluation input consumed", sum, log.Int64("step", step))
	return nil
}

// Predict consumes one pass of dev batches.
func (s *Summarizer) Predict(ctx context.Context, src ports.BatchSource) error {
	sum, err := s.consume(ctx, src, 0, func(sum Summary) {
		s.logger.Debug("prediction batch", log.Int("batch", sum.Batches), log.Int("examples", sum.Examples))
	})
	s.Last = sum
	if err != nil {
		return err
	}
	s.logSummary("prediction input consumed", sum)
	return nil
}

func (s *Summarizer) consume(ctx context.Context, src ports.BatchSource, limit int, each func(Summary)) (Summary, error) {
	var sum Summary
	for limit <= 0 || sum.Batches < limit {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		sum.add(b, unpaddedLengths(b))
		if each != nil {
			each(sum)
		}
	}
	return sum, nil
}

func (s *Summarizer) logSummary(msg string, sum Summary, extra ...log.Field) {
	fields := append([]log.Field{
		log.Int("batches", sum.Batches),
		log.Int("examples", sum.Examples),
		log.Int("positives", sum.Positives),
		log.Int("max_time", sum.MaxTime),
		log.Int("padded_values", sum.PaddedValues),
	}, extra...)
	s.logger.Info(msg, fields...)
}

// unpaddedLengths estimates each example's length as one past its last
// non-zero time step.
func unpaddedLengths(b domain.Batch) []int {
	out := make([]int, b.Size())
	for i := range out {
		for t := b.Shape[3] - 1; t >= 0 && out[i] == 0; t-- {
			for c := 0; c < b.Shape[1] && out[i] == 0; c++ {
				for f := 0; f < b.Shape[2]; f++ {
					if b.At(i, c, f, t) != 0 {
						out[i] = t + 1
						break
					}
				}
			}
		}
	}
	return out
}
