package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/log"
	"github.com/bft-labs/birdrec/pkg/record"
	"github.com/bft-labs/birdrec/pkg/tfrecord"
)

const (
	DefaultBatchSize     = 64
	DefaultShuffleBuffer = 1 << 16
	DefaultPrefetch      = 2
)

// ErrEmpty is returned by Next when a repeating stream finds no records in
// a whole pass.
var ErrEmpty = errors.New("stream: no records")

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream: closed")

// Options configures Open.
type Options struct {
	// Prefix is the record file prefix, e.g. "/data/birds" for
	// /data/birds_train.tfrecords.
	Prefix string
	Subset domain.Subset
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// FreqBins, when > 0, is the required size of every record's
	// frequency axis.
	FreqBins int
	// Augment adds the augmentation files to the train subset.
	Augment bool
	// Threshold clamps each sequence to 80 dB below its maximum.
	Threshold bool
	// ShuffleBuffer is the train shuffle buffer size. Values below 2
	// disable shuffling.
	ShuffleBuffer int
	// Prefetch is the number of batches buffered ahead of the consumer.
	Prefetch int

	Rand    *rand.Rand
	Logger  log.Logger
	Metrics *metrics.Metrics
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ShuffleBuffer == 0 {
		o.ShuffleBuffer = DefaultShuffleBuffer
	}
	if o.Prefetch <= 0 {
		o.Prefetch = DefaultPrefetch
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

type result struct {
	batch domain.Batch
	err   error
}

// Stream yields padded batches produced by a background goroutine.
// Next and Close must be called from a single consumer.
type Stream struct {
	opts   Options
	files  []string
	repeat bool
	shuf   bool

	log log.Logger
	m   *metrics.Metrics

	out    chan result
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	err       error
}

// Open resolves the record files and starts the producer. Missing base or
// augmentation files are reported here, before any batch is produced.
// Cancelling ctx stops the producer just like Close.
func Open(ctx context.Context, opts Options) (*Stream, error) {
	if opts.Prefix == "" {
		return nil, fmt.Errorf("%w: empty record prefix", domain.ErrConfig)
	}
	if opts.Subset == "" {
		return nil, fmt.Errorf("%w: empty subset", domain.ErrConfig)
	}
	opts.setDefaults()

	files, err := Files(opts.Prefix, opts.Subset, opts.Augment)
	if err != nil {
		return nil, err
	}

	train := opts.Subset == domain.SubsetTrain
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		opts:   opts,
		files:  files,
		repeat: train,
		shuf:   train && opts.ShuffleBuffer > 1,
		log: log.OrNoop(opts.Logger).With(
			log.String("component", "stream"),
			log.String("subset", string(opts.Subset))),
		m:      metrics.OrDiscard(opts.Metrics),
		out:    make(chan result, opts.Prefetch),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.log.Debug("opening stream",
		log.Any("files", files),
		log.Int("batch_size", opts.BatchSize),
		log.Bool("shuffle", s.shuf))

	go s.produce(ctx)
	return s, nil
}

// Files returns the record files the stream reads, in order.
func (s *Stream) Files() []string {
	return append([]string(nil), s.files...)
}

// Next returns the next batch. A finite stream returns io.EOF after its
// last batch. Decode and container errors end the stream and are returned
// from every later call.
func (s *Stream) Next(ctx context.Context) (domain.Batch, error) {
	if s.err != nil {
		return domain.Batch{}, s.err
	}
	select {
	case <-ctx.Done():
		return domain.Batch{}, ctx.Err()
	case r, ok := <-s.out:
		if !ok {
			s.err = io.EOF
			return domain.Batch{}, io.EOF
		}
		if r.err != nil {
			s.err = r.err
			return domain.Batch{}, r.err
		}
		return r.batch, nil
	}
}

// Close stops the producer and waits for it to release its files.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.err == nil {
			s.err = ErrClosed
		}
	})
	return nil
}

func (s *Stream) produce(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	for epoch := 1; ; epoch++ {
		n, err := s.pass(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.send(ctx, result{err: err})
			}
			return
		}
		s.m.Epochs.WithLabelValues(string(s.opts.Subset)).Inc()
		s.log.Debug("pass complete", log.Int("epoch", epoch), log.Int("records", n))
		if !s.repeat {
			return
		}
		if n == 0 {
			s.send(ctx, result{err: fmt.Errorf("%w: %v", ErrEmpty, s.files)})
			return
		}
	}
}

// pass reads every file once and emits its batches, returning the number
// of records read.
func (s *Stream) pass(ctx context.Context) (int, error) {
	var (
		n       int
		pending = make([]domain.Example, 0, s.opts.BatchSize)
		shuf    *shuffler
	)
	if s.shuf {
		shuf = newShuffler(s.opts.ShuffleBuffer, s.opts.Rand)
	}

	emit := func(payload []byte) error {
		ex, err := s.decode(payload, n)
		if err != nil {
			return err
		}
		pending = append(pending, ex)
		if len(pending) < s.opts.BatchSize {
			return nil
		}
		return s.flush(ctx, &pending)
	}

	for _, path := range s.files {
		err := eachRecord(ctx, path, func(payload []byte) error {
			n++
			if shuf == nil {
				return emit(payload)
			}
			if out, ok := shuf.push(payload); ok {
				return emit(out)
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	if shuf != nil {
		for {
			out, ok := shuf.pop()
			if !ok {
				break
			}
			if err := emit(out); err != nil {
				return n, err
			}
		}
	}
	if len(pending) > 0 {
		if err := s.flush(ctx, &pending); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Stream) decode(payload []byte, idx int) (domain.Example, error) {
	ex, err := record.DecodeExample(payload, s.opts.Threshold)
	if err != nil {
		s.m.DecodeErrors.Inc()
		return domain.Example{}, fmt.Errorf("record %d: %w", idx, err)
	}
	if s.opts.FreqBins > 0 && ex.FreqBins() != s.opts.FreqBins {
		s.m.DecodeErrors.Inc()
		return domain.Example{}, fmt.Errorf("%w: record %d has %d frequency bins, want %d",
			domain.ErrDecode, idx, ex.FreqBins(), s.opts.FreqBins)
	}
	s.m.RecordsDecoded.Inc()
	return ex, nil
}

func (s *Stream) flush(ctx context.Context, pending *[]domain.Example) error {
	b, err := PadBatch(*pending)
	if err != nil {
		return err
	}
	*pending = make([]domain.Example, 0, s.opts.BatchSize)
	if err := s.send(ctx, result{batch: b}); err != nil {
		return err
	}
	s.m.BatchesEmitted.WithLabelValues(string(s.opts.Subset)).Inc()
	return nil
}

func (s *Stream) send(ctx context.Context, r result) error {
	select {
	case s.out <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eachRecord calls fn with every payload of the file at path.
func eachRecord(ctx context.Context, path string, fn func([]byte) error) (err error) {
	r, err := tfrecord.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, r.Close()) }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
}
