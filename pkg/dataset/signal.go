package dataset

// Length bounds for raw signals, in samples at the native 44.1 kHz rate.
const (
	DefaultSampleRate = 44100
	DefaultMinSamples = 120000
	DefaultMaxSamples = 600000
)

// SignalConfig keeps the resample rate and the length filter together.
// The bounds are in samples of the loaded signal, so they only mean the
// same duration as long as ResampleRate is left at the native rate.
// TODO: scale MinSamples/MaxSamples with ResampleRate once the expected
// clip duration range is confirmed.
type SignalConfig struct {
	// ResampleRate resamples on load when > 0.
	ResampleRate int
	MinSamples   int
	MaxSamples   int
}

// DefaultSignalConfig keeps the native rate and the [120000, 600000) range.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		MinSamples: DefaultMinSamples,
		MaxSamples: DefaultMaxSamples,
	}
}

// Accept reports whether a signal of n samples is kept. The range is
// half-open: MinSamples <= n < MaxSamples.
func (c SignalConfig) Accept(n int) bool {
	return n >= c.MinSamples && n < c.MaxSamples
}
