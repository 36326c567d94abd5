// Package domain contains the core entities and error values for birdrec.
//
// This package has no dependencies on infrastructure concerns (files,
// protobuf, logging) and holds only the data model and its invariants.
//
// # Entities
//
//   - [Record]: one serialized training example (sequence, shape, label)
//   - [Example]: a decoded record with a leading channel axis
//   - [Batch]: a padded batch of examples ready for a training loop
//   - [Subset]: the train/dev partition a file belongs to
package domain
