package app

import (
	"context"
	"errors"
	"testing"

	"github.com/bft-labs/birdrec/internal/domain"
)

func batchOf(labels []int64, lengths []int, tmax int) domain.Batch {
	b := domain.Batch{
		Sequences: make([]float32, len(labels)*tmax),
		Labels:    labels,
		Shape:     [4]int{len(labels), 1, 1, tmax},
	}
	for i, n := range lengths {
		for t := 0; t < n; t++ {
			b.Sequences[i*tmax+t] = 0.5
		}
	}
	return b
}

func TestSummarizer_TrainStopsAtSteps(t *testing.T) {
	src := &fakeSource{batches: []domain.Batch{
		batchOf([]int64{1, 0}, []int{3, 2}, 3),
		batchOf([]int64{1, 1}, []int{1, 1}, 1),
		batchOf([]int64{0}, []int{5}, 5),
	}}
	s := NewSummarizer(nil)
	if err := s.Train(context.Background(), src, 2); err != nil {
		t.Fatal(err)
	}
	want := Summary{Batches: 2, Examples: 4, Positives: 3, MaxTime: 3, PaddedValues: 1}
	if s.Last != want {
		t.Errorf("Last = %+v, want %+v", s.Last, want)
	}
	if len(src.batches) != 1 {
		t.Errorf("Train consumed past its step limit")
	}
}

func TestSummarizer_EvaluateWholePass(t *testing.T) {
	src := &fakeSource{batches: []domain.Batch{
		batchOf([]int64{1}, []int{2}, 2),
		batchOf([]int64{0, 0}, []int{4, 1}, 4),
	}}
	s := NewSummarizer(nil)
	if err := s.Evaluate(context.Background(), 100, src); err != nil {
		t.Fatal(err)
	}
	if s.Last.Batches != 2 || s.Last.Examples != 3 || s.Last.PaddedValues != 3 {
		t.Errorf("Last = %+v", s.Last)
	}
}

type errSource struct{ err error }

func (e errSource) Next(context.Context) (domain.Batch, error) { return domain.Batch{}, e.err }
func (e errSource) Close() error                               { return nil }

func TestSummarizer_PropagatesErrors(t *testing.T) {
	s := NewSummarizer(nil)
	if err := s.Predict(context.Background(), errSource{err: domain.ErrDecode}); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("Predict error = %v, want ErrDecode", err)
	}
}
