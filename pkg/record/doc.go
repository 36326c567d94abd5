// Package record converts training examples to and from tf.train.Example
// protobuf bytes.
//
// Three features are stored per example:
//
//	seq    FloatList  flattened (freq, time) matrix, row-major
//	shape  Int64List  exactly 2 values
//	label  Int64List  exactly 1 value
//
// The protobuf is written with protowire directly so no generated code is
// needed; the bytes are identical to what TensorFlow's own serializer emits
// for the same feature map (map entries are written in key order).
package record
