package stream

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/dataset"
	"github.com/bft-labs/birdrec/pkg/record"
	"github.com/bft-labs/birdrec/pkg/tfrecord"
)

// writeRecords writes one record per label; record i has freq bins and
// 3+i%4 time steps filled with the label value.
func writeRecords(t *testing.T, prefix, part string, freq int, labels ...int64) {
	t.Helper()
	w, err := tfrecord.Create(dataset.Path(prefix, part))
	require.NoError(t, err)
	for i, label := range labels {
		steps := 3 + i%4
		seq := make([]float32, freq*steps)
		for j := range seq {
			seq[j] = float32(label)
		}
		payload, err := record.Encode(domain.Record{
			Sequence: seq,
			Shape:    [2]int64{int64(freq), int64(steps)},
			Label:    label,
		})
		require.NoError(t, err)
		require.NoError(t, w.Write(payload))
	}
	require.NoError(t, w.Close())
}

func labels(from, to int64) []int64 {
	out := make([]int64, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func collect(t *testing.T, s *Stream, n int) []domain.Batch {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out []domain.Batch
	for i := 0; i < n; i++ {
		b, err := s.Next(ctx)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestDevSinglePass(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "dev", 2, labels(0, 5)...)

	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetDev, BatchSize: 2, FreqBins: 2})
	require.NoError(t, err)
	defer s.Close()

	batches := collect(t, s, 3)
	assert.Equal(t, []int64{0, 1}, batches[0].Labels)
	assert.Equal(t, []int64{2, 3}, batches[1].Labels)
	assert.Equal(t, []int64{4}, batches[2].Labels)
	assert.Equal(t, [4]int{1, 1, 2, 3}, batches[2].Shape)

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestTrainRepeatsWithoutCrossingEpochs(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "train", 1, labels(0, 5)...)

	m := metrics.New(nil)
	s, err := Open(context.Background(), Options{
		Prefix:    prefix,
		Subset:    domain.SubsetTrain,
		BatchSize: 2,
		Rand:      rand.New(rand.NewSource(1)),
		Metrics:   m,
	})
	require.NoError(t, err)
	defer s.Close()

	batches := collect(t, s, 9)
	for epoch := 0; epoch < 3; epoch++ {
		got := batches[epoch*3 : epoch*3+3]
		assert.Equal(t, 2, got[0].Size())
		assert.Equal(t, 2, got[1].Size())
		assert.Equal(t, 1, got[2].Size())

		var seen []int64
		for _, b := range got {
			seen = append(seen, b.Labels...)
		}
		sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
		assert.Equal(t, labels(0, 5), seen, "epoch %d", epoch)
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Epochs.WithLabelValues("train")), 2.0)
}

func TestTrainShuffles(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	want := labels(0, 50)
	writeRecords(t, prefix, "train", 1, want...)

	s, err := Open(context.Background(), Options{
		Prefix:    prefix,
		Subset:    domain.SubsetTrain,
		BatchSize: 50,
		Rand:      rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	defer s.Close()

	batches := collect(t, s, 2)
	first := batches[0].Labels
	second := batches[1].Labels
	assert.NotEqual(t, want, first)
	assert.NotEqual(t, first, second, "each epoch is reshuffled")

	sorted := append([]int64(nil), first...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, want, sorted)
}

func TestShuffleBufferDisabled(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "train", 1, labels(0, 6)...)

	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetTrain, BatchSize: 6, ShuffleBuffer: 1})
	require.NoError(t, err)
	defer s.Close()

	b := collect(t, s, 1)[0]
	assert.Equal(t, labels(0, 6), b.Labels)
}

func TestAugmentation(t *testing.T) {
	t.Run("missing augment file", func(t *testing.T) {
		prefix := filepath.Join(t.TempDir(), "birds")
		writeRecords(t, prefix, "train", 1, 0)

		_, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetTrain, Augment: true})
		assert.ErrorIs(t, err, domain.ErrMissingAugmentation)
	})

	t.Run("augment and more_augment", func(t *testing.T) {
		prefix := filepath.Join(t.TempDir(), "birds")
		writeRecords(t, prefix, "train", 1, labels(0, 3)...)
		writeRecords(t, prefix, PartAugment, 1, labels(100, 102)...)
		writeRecords(t, prefix, PartMoreAugment, 1, labels(200, 201)...)

		s, err := Open(context.Background(), Options{
			Prefix: prefix, Subset: domain.SubsetTrain, Augment: true,
			BatchSize: 6, ShuffleBuffer: 1,
		})
		require.NoError(t, err)
		defer s.Close()
		assert.Len(t, s.Files(), 3)

		b := collect(t, s, 1)[0]
		assert.Equal(t, []int64{0, 1, 2, 100, 101, 200}, b.Labels)
	})

	t.Run("augment only", func(t *testing.T) {
		prefix := filepath.Join(t.TempDir(), "birds")
		writeRecords(t, prefix, "train", 1, 0)
		writeRecords(t, prefix, PartAugment, 1, 1)

		files, err := Files(prefix, domain.SubsetTrain, true)
		require.NoError(t, err)
		assert.Equal(t, []string{dataset.Path(prefix, "train"), dataset.Path(prefix, PartAugment)}, files)
	})

	t.Run("dev ignores augment", func(t *testing.T) {
		prefix := filepath.Join(t.TempDir(), "birds")
		writeRecords(t, prefix, "dev", 1, 0)

		files, err := Files(prefix, domain.SubsetDev, true)
		require.NoError(t, err)
		assert.Equal(t, []string{dataset.Path(prefix, "dev")}, files)
	})
}

func TestOpenMissingBase(t *testing.T) {
	_, err := Open(context.Background(), Options{Prefix: filepath.Join(t.TempDir(), "none"), Subset: domain.SubsetDev})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFreqMismatchIsDecodeError(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "dev", 3, 0, 1)

	m := metrics.New(nil)
	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetDev, FreqBins: 128, Metrics: m})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrDecode)
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrDecode, "errors are sticky")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors))
}

func TestCorruptFile(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "dev", 1, 0, 1)
	path := dataset.Path(prefix, "dev")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetDev, BatchSize: 1})
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, b.Labels)
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestThreshold(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	w, err := tfrecord.Create(dataset.Path(prefix, "dev"))
	require.NoError(t, err)
	payload, err := record.Encode(domain.Record{
		Sequence: []float32{0, -100, -5},
		Shape:    [2]int64{1, 3},
		Label:    1,
	})
	require.NoError(t, err)
	require.NoError(t, w.Write(payload))
	require.NoError(t, w.Close())

	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetDev, Threshold: true})
	require.NoError(t, err)
	defer s.Close()

	b := collect(t, s, 1)[0]
	assert.InDelta(t, -float64(record.DBFloor), b.At(0, 0, 0, 1), 1e-5)
	assert.Equal(t, float32(-5), b.At(0, 0, 0, 2))
}

func TestEmptyTrainFails(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "train", 1)

	s, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetTrain})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCancelAndClose(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	writeRecords(t, prefix, "train", 1, labels(0, 4)...)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := Open(ctx, Options{Prefix: prefix, Subset: domain.SubsetTrain, BatchSize: 1, Prefetch: 1})
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after cancel")
	}

	_, err = s.Next(context.Background())
	assert.Error(t, err)

	nctx, ncancel := context.WithCancel(context.Background())
	ncancel()
	s2, err := Open(context.Background(), Options{Prefix: prefix, Subset: domain.SubsetTrain, BatchSize: 1})
	require.NoError(t, err)
	defer s2.Close()
	// A ready batch may still win the select; the cancelled context wins eventually.
	for {
		if _, err = s2.Next(nctx); err != nil {
			break
		}
	}
	assert.True(t, errors.Is(err, context.Canceled))
}
