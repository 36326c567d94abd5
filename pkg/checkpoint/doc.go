// Package checkpoint follows a training run's checkpoint manifest and
// yields each new checkpoint step once, in order.
//
// The manifest is model_dir/checkpoint, written by an external trainer.
// Each line names one checkpoint, either as a bare step ("500") or as a
// path ending in "-<step>", optionally quoted:
//
//	all_model_checkpoint_paths: "model.ckpt-500"
//
// A line reading "done" ends the sequence. A Watcher blocks on fsnotify
// events for the model directory with a poll ticker as fallback, so it
// also works on file systems that do not deliver events.
package checkpoint
