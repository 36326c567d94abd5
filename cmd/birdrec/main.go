package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/birdrec/internal/cliconfig"
	"github.com/bft-labs/birdrec/internal/metrics"
	"github.com/bft-labs/birdrec/pkg/log"
)

const helpDescription = `
Turn labeled bird audio into TFRecord files and stream them back as padded
batches for training and checkpoint-by-checkpoint evaluation.

  make-records  scan the Bird Audio Detection CSVs, filter by length,
                transform (raw or log-mel) and split into train/dev files
  run           stream the records for train, eval or predict; eval
                follows model_dir/checkpoint as new checkpoints appear

Configuration is read from flags, then BIRDREC_* environment variables,
then $HOME/.birdrec/config.toml.
`

var exampleUsage = strings.TrimSpace(`
  birdrec make-records /data/bad /data/tfr/birds --transform mel --seed 1 --progress
  birdrec run train data.toml /models/run1 --augment --steps 20000
  birdrec run eval data.toml /models/run1 --eval-timeout 30m --metrics-addr :9102
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger, lerr := log.NewZerologAdapter("error")
		if lerr != nil {
			fmt.Fprintf(os.Stderr, "birdrec: %v\n", err)
		} else {
			logger.Error("birdrec", log.Err(err))
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "birdrec",
		Short:         "Audio record pipeline for bird detection models",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.birdrec/config.toml)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9102)")

	root.AddCommand(
		newMakeRecordsCmd(&cfg, &cfgPath),
		newRunCmd(&cfg, &cfgPath),
	)
	return root
}

// session holds what every subcommand needs once configuration is final.
type session struct {
	cfg     cliconfig.Config
	logger  log.Logger
	metrics *metrics.Metrics
	server  *metrics.Server
}

// newSession loads the config file (default $HOME/.birdrec/config.toml),
// then environment variables, leaving explicitly set flags untouched.
func newSession(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (*session, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return nil, err
		}
	} else if cfgPath != "" {
		return nil, fmt.Errorf("config file %s not found", cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := log.NewZerologAdapter(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration", log.Any("config", *cfg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &session{cfg: *cfg, logger: logger, metrics: metrics.New(reg)}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return nil, fmt.Errorf("metrics server: %w", err)
		}
		s.server = srv
	}
	return s, nil
}

func (s *session) Close() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", log.Err(err))
	}
}
