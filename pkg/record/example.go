package record

import (
	"math"

	"github.com/bft-labs/birdrec/internal/domain"
)

// DBFloor is the 80 dB dynamic range expressed for natural-log power values:
// 80/10 * ln(10).
var DBFloor = float32(8 * math.Ln10)

// ToExample adds the channel axis to rec. When threshold is set the sequence
// is clamped with Clamp first. The returned Example shares rec's backing
// array.
func ToExample(rec domain.Record, threshold bool) domain.Example {
	if threshold {
		Clamp(rec.Sequence)
	}
	return domain.Example{
		Data:  rec.Sequence,
		Shape: [3]int{1, int(rec.Shape[0]), int(rec.Shape[1])},
		Label: rec.Label,
	}
}

// Clamp raises every value below max(seq)-DBFloor to that floor, in place.
func Clamp(seq []float32) {
	if len(seq) == 0 {
		return
	}
	maxV := seq[0]
	for _, v := range seq[1:] {
		if v > maxV {
			maxV = v
		}
	}
	floor := maxV - DBFloor
	for i, v := range seq {
		if v < floor {
			seq[i] = floor
		}
	}
}

// DecodeExample is Decode followed by ToExample.
func DecodeExample(b []byte, threshold bool) (domain.Example, error) {
	rec, err := Decode(b)
	if err != nil {
		return domain.Example{}, err
	}
	return ToExample(rec, threshold), nil
}
