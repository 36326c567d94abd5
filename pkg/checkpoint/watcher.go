package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/log"
)

// ManifestName is the manifest file inside the model directory.
const ManifestName = "checkpoint"

// DefaultPollInterval is the fallback re-read interval.
const DefaultPollInterval = time.Second

// ErrTimeout is returned by Next when no new checkpoint appeared within
// the configured timeout.
var ErrTimeout = errors.New("checkpoint: timed out waiting for a new checkpoint")

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets how often the manifest is re-read when no file
// system event arrives.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithTimeout makes Next give up with ErrTimeout after d without a new
// checkpoint. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.timeout = d }
}

// WithStartAfter skips every step not greater than step, e.g. checkpoints
// already evaluated before a restart.
func WithStartAfter(step int64) Option {
	return func(w *Watcher) { w.high, w.hasHigh = step, true }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(w *Watcher) { w.log = log.OrNoop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.m = metrics.OrDiscard(m) }
}

// Watcher yields checkpoint steps appended to a manifest. Steps not
// greater than the last one yielded are skipped. It is not safe for
// concurrent use.
type Watcher struct {
	dir     string
	path    string
	poll    time.Duration
	timeout time.Duration
	log     log.Logger
	m       *metrics.Metrics

	offset  int64
	high    int64
	hasHigh bool
	queue   []int64
	done    bool

	fsw      *fsnotify.Watcher
	watching bool
	missing  *backoff
}

// NewWatcher returns a watcher for modelDir/checkpoint. Nothing is read
// until the first call to Next.
func NewWatcher(modelDir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:  modelDir,
		path: filepath.Join(modelDir, ManifestName),
		poll: DefaultPollInterval,
		log:  log.NewNoopLogger(),
		m:    metrics.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.missing = newBackoff(w.poll, 10*w.poll)
	w.log = w.log.With(log.String("component", "checkpoint"), log.String("manifest", w.path))
	return w
}

// Path returns the manifest path.
func (w *Watcher) Path() string { return w.path }

// Next blocks until a new checkpoint step is available and returns it.
// It returns io.EOF after the manifest's "done" line, ErrTimeout when the
// timeout elapses, or ctx.Err() when ctx is cancelled.
func (w *Watcher) Next(ctx context.Context) (int64, error) {
	var deadline <-chan time.Time
	if w.timeout > 0 {
		t := time.NewTimer(w.timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		if len(w.queue) > 0 {
			step := w.queue[0]
			w.queue = w.queue[1:]
			w.m.CheckpointsSeen.Inc()
			return step, nil
		}
		if w.done {
			return 0, io.EOF
		}

		delay := w.poll
		switch err := w.scan(); {
		case err == nil:
			w.missing.Reset()
			if len(w.queue) > 0 || w.done {
				continue
			}
		case errors.Is(err, fs.ErrNotExist):
			delay = w.missing.Next()
			w.log.Debug("manifest not found, waiting", log.Duration("retry_in", delay))
		default:
			return 0, err
		}

		w.ensureWatch()
		if err := w.wait(ctx, deadline, delay); err != nil {
			return 0, err
		}
	}
}

// Each calls fn for every checkpoint until the manifest is done, fn fails
// or ctx is cancelled. Reaching "done" returns nil.
func (w *Watcher) Each(ctx context.Context, fn func(step int64) error) error {
	for {
		step, err := w.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(step); err != nil {
			return err
		}
	}
}

// Close releases the file system watch.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	w.fsw = nil
	w.watching = false
	return err
}

func (w *Watcher) wait(ctx context.Context, deadline <-chan time.Time, delay time.Duration) error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrTimeout
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) != ManifestName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn("file system watch error", log.Err(err))
		}
	}
}

// ensureWatch subscribes to events for the model directory once it exists.
// Failing to watch only leaves the poll fallback.
func (w *Watcher) ensureWatch() {
	if w.watching {
		return
	}
	if w.fsw == nil {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("fsnotify unavailable, polling only", log.Err(err))
			w.watching = true
			return
		}
		w.fsw = fsw
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return
	}
	w.watching = true
}

// scan reads the complete lines appended since the last scan.
func (w *Watcher) scan() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() < w.offset {
		w.log.Info("manifest shrank, rescanning",
			log.Int64("size", st.Size()),
			log.Int64("offset", w.offset))
		w.offset = 0
	}
	if st.Size() == w.offset {
		return nil
	}
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek manifest: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	w.offset += int64(end + 1)

	for _, line := range bytes.Split(data[:end], []byte{'\n'}) {
		step, kind := parseLine(string(line))
		switch kind {
		case lineDone:
			w.done = true
			return nil
		case lineStep:
			if w.hasHigh && step <= w.high {
				continue
			}
			w.high, w.hasHigh = step, true
			w.queue = append(w.queue, step)
		}
	}
	return nil
}
