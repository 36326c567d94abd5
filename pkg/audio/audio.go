// Package audio loads WAV files as mono float32 signals.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Signal is a mono waveform with samples in [-1, 1].
type Signal struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Load decodes the PCM WAV file at path, mixes it down to mono and scales
// it to [-1, 1]. When resampleRate > 0 and differs from the file's rate
// the signal is resampled by linear interpolation.
func Load(path string, resampleRate int) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Signal{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	if d.WavAudioFormat != 1 {
		return Signal{}, fmt.Errorf("%s: unsupported wav format %d (only PCM)", path, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("%s: decode: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return Signal{}, fmt.Errorf("%s: decode: missing format", path)
	}

	sig := Signal{
		Samples:    toMono(buf, int(d.BitDepth)),
		SampleRate: buf.Format.SampleRate,
	}
	if resampleRate > 0 && resampleRate != sig.SampleRate {
		sig = Resample(sig, resampleRate)
	}
	return sig, nil
}

func toMono(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	chans := buf.Format.NumChannels
	if chans < 1 {
		chans = 1
	}
	offset := 0.0
	scale := math.Ldexp(1, bitDepth-1)
	if bitDepth == 8 {
		// 8-bit PCM is unsigned.
		offset = 128
		scale = 128
	}
	n := len(buf.Data) / chans
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var acc float64
		for c := 0; c < chans; c++ {
			acc += (float64(buf.Data[i*chans+c]) - offset) / scale
		}
		out[i] = float32(acc / float64(chans))
	}
	return out
}

// Resample converts s to rate by linear interpolation.
func Resample(s Signal, rate int) Signal {
	if rate <= 0 || s.SampleRate <= 0 || rate == s.SampleRate || len(s.Samples) == 0 {
		return s
	}
	ratio := float64(s.SampleRate) / float64(rate)
	n := int(math.Ceil(float64(len(s.Samples)) / ratio))
	out := make([]float32, n)
	last := len(s.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = s.Samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = s.Samples[j]*(1-frac) + s.Samples[j+1]*frac
	}
	return Signal{Samples: out, SampleRate: rate}
}

// WriteWAV stores samples in [-1, 1] as a mono 16-bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		x := math.Round(float64(v) * 32767)
		data[i] = int(math.Max(-32768, math.Min(32767, x)))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
