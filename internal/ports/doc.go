// Package ports defines the interfaces that connect the run modes in
// internal/app to the record pipeline and to the model code that consumes it.
//
// # Port Interfaces
//
//   - [BatchSource]: yields padded batches (implemented by *stream.Stream)
//   - [CheckpointSource]: yields checkpoint steps (implemented by *checkpoint.Watcher)
//   - [Trainer], [Evaluator], [Predictor]: the model side, supplied by the caller
//   - [EvalStateRepository]: remembers the last evaluated checkpoint
//
// The application layer depends only on these interfaces, so run modes are
// tested with in-memory fakes and the model stays outside this module.
package ports
