package domain

import (
	"fmt"
	"math"
)

// Subset names a partition of the dataset.
type Subset string

const (
	SubsetTrain Subset = "train"
	SubsetDev   Subset = "dev"
)

// Record is one training example as stored on disk.
// Sequence is row-major with dimensions Shape[0] x Shape[1]
// (frequency bins x time steps).
type Record struct {
	Sequence []float32
	Shape    [2]int64
	Label    int64
}

// Validate checks that the sequence length matches the shape.
func (r Record) Validate() error {
	if r.Shape[0] < 0 || r.Shape[1] < 0 {
		return fmt.Errorf("negative shape %v", r.Shape)
	}
	rows, cols := r.Shape[0], r.Shape[1]
	if cols != 0 && rows > math.MaxInt64/cols {
		return fmt.Errorf("shape %v overflows", r.Shape)
	}
	if int64(len(r.Sequence)) != rows*cols {
		return fmt.Errorf("sequence has %d values, shape %v needs %d",
			len(r.Sequence), r.Shape, rows*cols)
	}
	return nil
}

// Volume returns the product of dims. ok is false when a dimension is
// negative or the product does not fit in an int.
func Volume(dims ...int) (n int, ok bool) {
	n = 1
	for _, d := range dims {
		if d < 0 || (d != 0 && n > math.MaxInt/d) {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Example is a decoded record with a synthetic channel axis of size 1.
// Shape is (channels, freq, time).
type Example struct {
	Data  []float32
	Shape [3]int
	Label int64
}

// FreqBins returns the size of the frequency axis.
func (e Example) FreqBins() int { return e.Shape[1] }

// TimeSteps returns the size of the time axis.
func (e Example) TimeSteps() int { return e.Shape[2] }
