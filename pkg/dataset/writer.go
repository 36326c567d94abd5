package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/audio"
	"github.com/bft-labs/birdrec/pkg/log"
	"github.com/bft-labs/birdrec/pkg/record"
	"github.com/bft-labs/birdrec/pkg/tfrecord"
	"github.com/bft-labs/birdrec/pkg/transform"
)

// Suffix is appended to every record file name.
const Suffix = ".tfrecords"

// DefaultPropTrain is the default probability of assigning an example to
// the train partition.
const DefaultPropTrain = 0.85

const defaultProgressEvery = 100

// Path returns the record file for prefix and part, e.g.
// Path("/d/birds", "train") == "/d/birds_train.tfrecords".
func Path(prefix, part string) string {
	return prefix + "_" + part + Suffix
}

// LoadFunc loads an audio file, resampling when rate > 0.
type LoadFunc func(path string, rate int) (audio.Signal, error)

// WriteOptions configures Write. Use DefaultWriteOptions as a base.
type WriteOptions struct {
	PropTrain float64
	// DevInds names a file of holdout indices. Deterministic splits are
	// not implemented; a non-empty value makes Write fail.
	DevInds   string
	Signal    SignalConfig
	Transform transform.Kind
	Mel       transform.MelParams

	Rand    *rand.Rand
	Logger  log.Logger
	Metrics *metrics.Metrics
	Load    LoadFunc

	// ProgressEvery logs a progress line every this many processed items.
	ProgressEvery int
	// ProgressBar renders an mpb bar to ProgressOutput when Total > 0.
	ProgressBar    bool
	ProgressOutput io.Writer
	Total          int
}

// DefaultWriteOptions returns options for a random 85/15 raw split.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		PropTrain:     DefaultPropTrain,
		Signal:        DefaultSignalConfig(),
		Transform:     transform.Raw,
		Mel:           transform.DefaultMelParams(),
		ProgressEvery: defaultProgressEvery,
	}
}

// WriteStats summarises one Write call.
type WriteStats struct {
	Processed int
	Skipped   int
	Train     int
	Dev       int
}

// Write consumes src and writes {prefix}_train.tfrecords and
// {prefix}_dev.tfrecords. Both files are closed on every return path.
// Signals outside opts.Signal's bounds are skipped, not treated as errors.
func Write(ctx context.Context, src LabeledIterator, prefix string, opts WriteOptions) (stats WriteStats, err error) {
	if opts.DevInds != "" {
		return stats, fmt.Errorf("%w (dev_inds=%s)", domain.ErrDevIndsUnsupported, opts.DevInds)
	}
	if err := opts.Transform.Supported(); err != nil {
		return stats, err
	}
	if opts.PropTrain < 0 || opts.PropTrain > 1 {
		return stats, fmt.Errorf("%w: prop_train %v outside [0, 1]", domain.ErrConfig, opts.PropTrain)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Load == nil {
		opts.Load = audio.Load
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	logger := log.OrNoop(opts.Logger).With(log.String("component", "writer"))
	m := metrics.OrDiscard(opts.Metrics)

	if dir := filepath.Dir(prefix); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("output dir: %w", err)
		}
	}
	train, err := tfrecord.Create(Path(prefix, string(domain.SubsetTrain)))
	if err != nil {
		return stats, fmt.Errorf("create train file: %w", err)
	}
	defer func() { err = errors.Join(err, train.Close()) }()
	dev, err := tfrecord.Create(Path(prefix, string(domain.SubsetDev)))
	if err != nil {
		return stats, fmt.Errorf("create dev file: %w", err)
	}
	defer func() { err = errors.Join(err, dev.Close()) }()

	bar, wait := newProgress(opts)
	defer func() { wait(err) }()

	logger.Info("writing records",
		log.String("train", train.Path()),
		log.String("dev", dev.Path()),
		log.String("transform", opts.Transform.String()),
		log.Float64("prop_train", opts.PropTrain))

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, nerr := src.Next()
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			return stats, fmt.Errorf("labeled source: %w", nerr)
		}

		written, err := writeOne(item, opts, train, dev)
		if err != nil {
			return stats, err
		}
		stats.Processed++
		m.RecordsProcessed.Inc()
		switch written {
		case "":
			stats.Skipped++
			m.RecordsSkipped.Inc()
			logger.Debug("skipping signal outside length bounds", log.String("file", item.Path))
		case domain.SubsetTrain:
			stats.Train++
			m.RecordsWritten.WithLabelValues(string(written)).Inc()
		case domain.SubsetDev:
			stats.Dev++
			m.RecordsWritten.WithLabelValues(string(written)).Inc()
		}
		if bar != nil {
			bar.Increment()
		}
		if stats.Processed%opts.ProgressEvery == 0 {
			logger.Info("processed sequences", log.Int("processed", stats.Processed))
		}
	}

	logger.Info("finished writing records",
		log.Int("processed", stats.Processed),
		log.Int("skipped", stats.Skipped),
		log.Int("train", stats.Train),
		log.Int("dev", stats.Dev))
	return stats, nil
}

// writeOne returns the subset the item went to, or "" when it was skipped.
func writeOne(item LabeledFile, opts WriteOptions, train, dev *tfrecord.FileWriter) (domain.Subset, error) {
	sig, err := opts.Load(item.Path, opts.Signal.ResampleRate)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", item.Path, err)
	}
	if !opts.Signal.Accept(len(sig.Samples)) {
		return "", nil
	}

	mel := opts.Mel
	if sig.SampleRate > 0 {
		mel.SampleRate = sig.SampleRate
	}
	mat, err := transform.Apply(sig.Samples, opts.Transform, mel)
	if err != nil {
		return "", fmt.Errorf("transform %s: %w", item.Path, err)
	}
	payload, err := record.Encode(mat.Record(item.Label))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", item.Path, err)
	}

	if opts.Rand.Float64() <= opts.PropTrain {
		return domain.SubsetTrain, train.Write(payload)
	}
	return domain.SubsetDev, dev.Write(payload)
}

func newProgress(opts WriteOptions) (*mpb.Bar, func(error)) {
	if !opts.ProgressBar || opts.Total <= 0 {
		return nil, func(error) {}
	}
	out := opts.ProgressOutput
	if out == nil {
		out = os.Stderr
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
	bar := p.AddBar(int64(opts.Total),
		mpb.PrependDecorators(
			decor.Name("Writing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return bar, func(err error) {
		if err != nil {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
		p.Wait()
	}
}
