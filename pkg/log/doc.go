// Package log provides the logging abstraction used by birdrec components.
//
// Components accept a Logger through their options and never reach for a
// global logger. The zerolog adapter is what the CLI wires in; tests use the
// no-op logger.
//
//	logger, err := log.NewZerologAdapter("info")
//	if err != nil {
//	    return err
//	}
//	logger.Info("wrote records", log.Int("train", 850), log.Int("dev", 150))
package log
