package domain

// Batch is a group of examples padded to a common length.
// Sequences has shape (Shape[0], Shape[1], Shape[2], Shape[3]) =
// (batch, channels, freq, time) and Labels has shape (batch, 1).
// Padded positions hold zero; no mask is produced.
type Batch struct {
	Sequences []float32
	Labels    []int64
	Shape     [4]int
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	return b.Shape[0]
}

// Empty returns true if the batch has no examples.
func (b Batch) Empty() bool {
	return b.Shape[0] == 0
}

// At returns the value at (example, channel, freq, time).
func (b Batch) At(i, c, f, t int) float32 {
	s := b.Shape
	return b.Sequences[((i*s[1]+c)*s[2]+f)*s[3]+t]
}

// Example returns the i-th sequence of the batch as a flat slice
// (channels*freq*time values, including padding).
func (b Batch) Example(i int) []float32 {
	n := b.Shape[1] * b.Shape[2] * b.Shape[3]
	return b.Sequences[i*n : (i+1)*n]
}
