// Package transform turns a raw audio signal into the 2-D feature matrix that
// gets stored in a record.
package transform

import (
	"fmt"
	"strings"

	"github.com/bft-labs/birdrec/internal/domain"
)

// Kind selects the feature representation. The set is closed; Apply handles
// every value explicitly.
type Kind int

const (
	// Raw keeps the waveform and adds a leading frequency axis of size 1.
	Raw Kind = iota
	// Mel computes a log-power mel spectrogram.
	Mel
	// Stft is reserved for a linear-frequency spectrogram. Not implemented.
	Stft
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Mel:
		return "mel"
	case Stft:
		return "stft"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a CLI/config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "":
		return Raw, nil
	case "mel":
		return Mel, nil
	case "stft":
		return Stft, nil
	}
	return 0, fmt.Errorf("%w: unknown transform %q (want raw, mel or stft)", domain.ErrConfig, s)
}

// Supported returns nil when Apply can produce k. Stft fails with
// domain.ErrNotImplemented.
func (k Kind) Supported() error {
	switch k {
	case Raw, Mel:
		return nil
	case Stft:
		return fmt.Errorf("%w: stft transform", domain.ErrNotImplemented)
	default:
		return fmt.Errorf("%w: unknown transform %v", domain.ErrConfig, k)
	}
}

// Matrix is a row-major (Rows x Cols) feature matrix: frequency bins by
// time steps.
type Matrix struct {
	Data []float32
	Rows int
	Cols int
}

// Record wraps m as a domain.Record with the given label.
func (m Matrix) Record(label int64) domain.Record {
	return domain.Record{
		Sequence: m.Data,
		Shape:    [2]int64{int64(m.Rows), int64(m.Cols)},
		Label:    label,
	}
}

// Apply converts signal into a feature matrix of the given kind.
func Apply(signal []float32, kind Kind, p MelParams) (Matrix, error) {
	switch kind {
	case Raw:
		return Matrix{Data: signal, Rows: 1, Cols: len(signal)}, nil
	case Mel:
		return LogMel(signal, p)
	default:
		return Matrix{}, kind.Supported()
	}
}
