// Package stream reads record files back as padded batches.
//
// A Stream owns one producer goroutine that walks the record files, shuffles
// (train only), decodes, batches and pads, and hands batches to the consumer
// through a small buffered channel. The train subset repeats forever; every
// other subset makes a single pass and then Next returns io.EOF.
//
//	s, err := stream.Open(ctx, stream.Options{
//		Prefix:    "/data/birds",
//		Subset:    domain.SubsetDev,
//		BatchSize: 64,
//		FreqBins:  128,
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	for {
//		b, err := s.Next(ctx)
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
package stream
