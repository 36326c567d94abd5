// Package dataset turns labeled audio files into train/dev record files.
//
// A LabeledIterator supplies (filename, label) pairs; Write loads each file,
// drops signals outside the accepted length range, applies the configured
// transform and appends the encoded record to either the train or the dev
// file, chosen independently at random per example.
//
//	src, err := dataset.Scan("/data/birds", dataset.DefaultDatasets, 0)
//	if err != nil {
//	    return err
//	}
//	stats, err := dataset.Write(ctx, src, "/data/records/birds", dataset.DefaultWriteOptions())
//
// Output files are named {prefix}_train.tfrecords and {prefix}_dev.tfrecords.
package dataset
