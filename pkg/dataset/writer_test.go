package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/audio"
	"github.com/bft-labs/birdrec/pkg/record"
	"github.com/bft-labs/birdrec/pkg/tfrecord"
	"github.com/bft-labs/birdrec/pkg/transform"
)

// fakeLoad treats the file name as the number of samples to return.
func fakeLoad(path string, rate int) (audio.Signal, error) {
	n, err := strconv.Atoi(filepath.Base(path))
	if err != nil {
		return audio.Signal{}, err
	}
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%7) / 7
	}
	return audio.Signal{Samples: s, SampleRate: DefaultSampleRate}, nil
}

func items(lengths ...int) *SliceIterator {
	out := make([]LabeledFile, len(lengths))
	for i, n := range lengths {
		out[i] = LabeledFile{Path: strconv.Itoa(n), Label: int64(i % 2)}
	}
	return NewSliceIterator(out)
}

func testOptions(seed int64) WriteOptions {
	opts := DefaultWriteOptions()
	opts.Rand = rand.New(rand.NewSource(seed))
	opts.Load = fakeLoad
	return opts
}

func readAll(t *testing.T, path string) []domain.Record {
	t.Helper()
	r, err := tfrecord.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()
	var out []domain.Record
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		rec, err := record.Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, rec)
	}
}

func TestWriteLengthFilter(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	opts := testOptions(1)
	opts.PropTrain = 1

	stats, err := Write(context.Background(), items(119999, 120000, 599999, 600000), prefix, opts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stats.Processed != 4 || stats.Skipped != 2 || stats.Train != 2 || stats.Dev != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	recs := readAll(t, Path(prefix, "train"))
	if len(recs) != 2 {
		t.Fatalf("expected 2 train records, got %d", len(recs))
	}
	if recs[0].Shape != [2]int64{1, 120000} || recs[1].Shape != [2]int64{1, 599999} {
		t.Fatalf("unexpected shapes %v, %v", recs[0].Shape, recs[1].Shape)
	}
	if recs[0].Label != 1 || recs[1].Label != 0 {
		t.Fatalf("labels not preserved: %d, %d", recs[0].Label, recs[1].Label)
	}
	if len(readAll(t, Path(prefix, "dev"))) != 0 {
		t.Fatal("dev file should be empty")
	}
}

func TestWriteSplitProportion(t *testing.T) {
	const n = 2000
	lengths := make([]int, n)
	for i := range lengths {
		lengths[i] = 10 + i%5
	}
	prefix := filepath.Join(t.TempDir(), "split")
	opts := testOptions(42)
	opts.Signal = SignalConfig{MinSamples: 1, MaxSamples: 100}

	stats, err := Write(context.Background(), items(lengths...), prefix, opts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stats.Train+stats.Dev != n {
		t.Fatalf("train+dev = %d, want %d", stats.Train+stats.Dev, n)
	}
	// 0.85*2000 = 1700, sd ~16.
	if stats.Train < 1600 || stats.Train > 1800 {
		t.Fatalf("train count %d far from expected 1700", stats.Train)
	}

	nTrain, err := tfrecord.Count(Path(prefix, "train"))
	if err != nil {
		t.Fatal(err)
	}
	nDev, err := tfrecord.Count(Path(prefix, "dev"))
	if err != nil {
		t.Fatal(err)
	}
	if nTrain != stats.Train || nDev != stats.Dev {
		t.Fatalf("files hold %d/%d records, stats say %d/%d", nTrain, nDev, stats.Train, stats.Dev)
	}

	// Same seed, same split.
	opts2 := testOptions(42)
	opts2.Signal = opts.Signal
	again, err := Write(context.Background(), items(lengths...), filepath.Join(t.TempDir(), "again"), opts2)
	if err != nil {
		t.Fatal(err)
	}
	if again != stats {
		t.Fatalf("seeded runs differ: %+v vs %+v", again, stats)
	}
}

func TestWriteRefusesDevInds(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "birds")
	opts := testOptions(1)
	opts.DevInds = "dev_inds.npy"

	_, err := Write(context.Background(), items(120000), prefix, opts)
	if !errors.Is(err, domain.ErrDevIndsUnsupported) {
		t.Fatalf("expected ErrDevIndsUnsupported, got %v", err)
	}
	if _, statErr := os.Stat(Path(prefix, "train")); !os.IsNotExist(statErr) {
		t.Fatal("no output should be created when dev_inds is refused")
	}
}

func TestWriteRefusesStft(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
	}{
		{name: "in range", lengths: []int{120000}},
		{name: "all skipped by length", lengths: []int{1000, 1000}},
		{name: "no input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := filepath.Join(t.TempDir(), "birds")
			opts := testOptions(1)
			opts.Transform = transform.Stft

			stats, err := Write(context.Background(), items(tt.lengths...), prefix, opts)
			if !errors.Is(err, domain.ErrNotImplemented) {
				t.Fatalf("expected ErrNotImplemented, got %v", err)
			}
			if stats.Processed != 0 {
				t.Fatalf("expected nothing processed, got %+v", stats)
			}
			for _, part := range []string{"train", "dev"} {
				if _, statErr := os.Stat(Path(prefix, part)); !os.IsNotExist(statErr) {
					t.Fatalf("%s file should not be created for stft", part)
				}
			}
		})
	}
}

func TestWriteMel(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "mel")
	opts := testOptions(3)
	opts.PropTrain = 0
	opts.Transform = transform.Mel

	stats, err := Write(context.Background(), items(125000), prefix, opts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stats.Dev != 1 {
		t.Fatalf("expected the record in dev, got %+v", stats)
	}
	recs := readAll(t, Path(prefix, "dev"))
	if recs[0].Shape != [2]int64{128, 1 + 125000/1250} {
		t.Fatalf("mel shape = %v", recs[0].Shape)
	}
}

func TestWriteHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Write(ctx, items(120000), filepath.Join(t.TempDir(), "x"), testOptions(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWriteMetrics(t *testing.T) {
	m := metrics.New(nil)
	opts := testOptions(5)
	opts.Metrics = m
	opts.PropTrain = 1

	if _, err := Write(context.Background(), items(1, 120000), filepath.Join(t.TempDir(), "m"), opts); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.RecordsSkipped); got != 1 {
		t.Fatalf("skipped = %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsWritten.WithLabelValues("train")); got != 1 {
		t.Fatalf("written train = %v", got)
	}
}

func TestWriteLoadError(t *testing.T) {
	opts := testOptions(1)
	opts.Load = func(string, int) (audio.Signal, error) { return audio.Signal{}, fmt.Errorf("boom") }
	if _, err := Write(context.Background(), items(5), filepath.Join(t.TempDir(), "e"), opts); err == nil {
		t.Fatal("expected load error")
	}
}
