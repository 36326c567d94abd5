package stream

import (
	"errors"
	"fmt"

	"github.com/bft-labs/birdrec/internal/domain"
)

// PadBatch stacks examples into one batch, zero-padding the time axis on
// the right to the longest example. Channel and frequency axes must agree.
func PadBatch(examples []domain.Example) (domain.Batch, error) {
	if len(examples) == 0 {
		return domain.Batch{}, errors.New("stream: empty batch")
	}
	c, f := examples[0].Shape[0], examples[0].Shape[1]
	tmax := 0
	for i, ex := range examples {
		if ex.Shape[0] != c || ex.Shape[1] != f {
			return domain.Batch{}, fmt.Errorf("%w: example %d has shape %v, batch has (%d, %d, *)",
				domain.ErrDecode, i, ex.Shape, c, f)
		}
		if n, ok := domain.Volume(ex.Shape[:]...); !ok || len(ex.Data) != n {
			return domain.Batch{}, fmt.Errorf("%w: example %d has %d values for shape %v",
				domain.ErrDecode, i, len(ex.Data), ex.Shape)
		}
		tmax = max(tmax, ex.Shape[2])
	}

	size, ok := domain.Volume(len(examples), c, f, tmax)
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: batch of %d examples with shape (%d, %d, %d) is too large",
			domain.ErrDecode, len(examples), c, f, tmax)
	}
	b := domain.Batch{
		Sequences: make([]float32, size),
		Labels:    make([]int64, len(examples)),
		Shape:     [4]int{len(examples), c, f, tmax},
	}
	for i, ex := range examples {
		t := ex.Shape[2]
		for row := 0; row < c*f; row++ {
			copy(b.Sequences[(i*c*f+row)*tmax:], ex.Data[row*t:(row+1)*t])
		}
		b.Labels[i] = ex.Label
	}
	return b, nil
}
