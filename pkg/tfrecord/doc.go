// Package tfrecord reads and writes the TFRecord container format.
//
// Each entry on disk is framed as:
//
//	uint64 length          (little endian)
//	uint32 masked crc32c of the length bytes
//	[length]byte payload
//	uint32 masked crc32c of the payload
//
// The payload is opaque to this package; birdrec stores tf.train.Example
// protobufs in it (see package record).
//
// # Usage
//
//	w, err := tfrecord.Create(path)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	if err := w.Write(payload); err != nil {
//	    return err
//	}
//
//	r, err := tfrecord.Open(path)
//	...
//	for {
//	    payload, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package tfrecord
