package transform

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/bft-labs/birdrec/internal/domain"
)

// MelParams configures the mel spectrogram. The zero value is not usable;
// start from DefaultMelParams.
type MelParams struct {
	SampleRate int
	NFFT       int
	Hop        int
	NMels      int
	FMin       float64
	FMax       float64 // 0 means SampleRate/2
	// LogFloor bounds the power before the log so silent frames stay finite.
	LogFloor float64
}

// DefaultMelParams returns the settings the records were built with:
// 44.1 kHz input, 5000-sample window, 1250-sample hop, 128 mel bands.
func DefaultMelParams() MelParams {
	return MelParams{
		SampleRate: 44100,
		NFFT:       5000,
		Hop:        1250,
		NMels:      128,
		LogFloor:   1e-10,
	}
}

func (p MelParams) validate() error {
	if p.SampleRate <= 0 || p.NFFT <= 1 || p.Hop <= 0 || p.NMels <= 0 {
		return fmt.Errorf("%w: invalid mel params %+v", domain.ErrConfig, p)
	}
	return nil
}

// LogMel computes log(mel power spectrogram) of signal. Frames are centered
// (reflect padding of NFFT/2 on both sides) and windowed with a periodic
// Hann window; the filterbank uses the Slaney mel scale with area
// normalisation. The result is (NMels x 1+len(signal)/Hop).
func LogMel(signal []float32, p MelParams) (Matrix, error) {
	if err := p.validate(); err != nil {
		return Matrix{}, err
	}
	if len(signal) == 0 {
		return Matrix{}, fmt.Errorf("%w: empty signal", domain.ErrConfig)
	}

	power := PowerSpectrogram(signal, p.NFFT, p.Hop)
	fb := MelFilterbank(p.SampleRate, p.NFFT, p.NMels, p.FMin, p.FMax)
	frames := len(power)

	out := make([]float32, p.NMels*frames)
	for t, spec := range power {
		for m, weights := range fb {
			var acc float64
			for k, w := range weights {
				if w != 0 {
					acc += w * spec[k]
				}
			}
			if acc < p.LogFloor {
				acc = p.LogFloor
			}
			out[m*frames+t] = float32(math.Log(acc))
		}
	}
	return Matrix{Data: out, Rows: p.NMels, Cols: frames}, nil
}

// PowerSpectrogram returns |STFT|^2 per frame, each frame holding nfft/2+1
// bins.
func PowerSpectrogram(signal []float32, nfft, hop int) [][]float64 {
	pad := nfft / 2
	n := len(signal)
	padded := n + 2*pad
	frames := 1 + (padded-nfft)/hop

	win := hann(nfft)
	fft := fourier.NewFFT(nfft)
	buf := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)

	out := make([][]float64, frames)
	for i := 0; i < frames; i++ {
		start := i*hop - pad
		for k := 0; k < nfft; k++ {
			buf[k] = float64(signal[reflect(start+k, n)]) * win[k]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		row := make([]float64, len(coeffs))
		for k, c := range coeffs {
			a := cmplx.Abs(c)
			row[k] = a * a
		}
		out[i] = row
	}
	return out
}

// reflect maps i into [0, n) mirroring around the edges without repeating
// the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// MelFilterbank returns nMels triangular filters over nfft/2+1 FFT bins.
func MelFilterbank(sampleRate, nfft, nMels int, fmin, fmax float64) [][]float64 {
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	nBins := nfft/2 + 1
	fftFreqs := make([]float64, nBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}

	lo, hi := hzToMel(fmin), hzToMel(fmax)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	fb := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, nBins)
		lower, center, upper := melF[m], melF[m+1], melF[m+2]
		enorm := 2 / (upper - lower)
		for k, f := range fftFreqs {
			l := (f - lower) / (center - lower)
			u := (upper - f) / (upper - center)
			if w := math.Min(l, u); w > 0 {
				row[k] = w * enorm
			}
		}
		fb[m] = row
	}
	return fb
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(f float64) float64 {
	if f < melMinLogHz {
		return f / melFSp
	}
	return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
}

func melToHz(m float64) float64 {
	if m < melMinLogMel {
		return m * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
}
