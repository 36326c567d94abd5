package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/birdrec/internal/adapters/fs"
	"github.com/bft-labs/birdrec/internal/app"
	"github.com/bft-labs/birdrec/internal/cliconfig"
	"github.com/bft-labs/birdrec/internal/dataconfig"
	"github.com/bft-labs/birdrec/pkg/log"
)

func newRunCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <mode> <data_config> <model_dir>",
		Short: "Stream records for train, eval, predict or return",
		Long: `Stream records for one of the run modes:

  train    shuffled, optionally augmented batches from the train split
  eval     one pass over the dev split per new checkpoint in model_dir
  predict  one pass over the dev split
  return   nothing; the collaborators are left to the caller

Any other mode is logged and ignored.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, dataPath, modelDir := args[0], args[1], args[2]

			s, err := newSession(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()

			dc, err := dataconfig.Load(dataPath)
			if err != nil {
				return err
			}
			if dc.DevInds != "" && mode == app.ModePredict {
				s.logger.Warn("dev_inds is set but predictions are not matched back to audio files",
					log.String("dev_inds", dc.DevInds))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum := app.NewSummarizer(s.logger)
			runner := app.NewRunner(app.RunConfig{
				TFRPath:       dc.TFRPath,
				FreqBins:      dc.FreqBins(),
				ModelDir:      modelDir,
				BatchSize:     s.cfg.BatchSize,
				Prefetch:      s.cfg.Prefetch,
				ShuffleBuffer: s.cfg.ShuffleBuffer,
				Augment:       s.cfg.Augment,
				Threshold:     s.cfg.Threshold,
				Steps:         s.cfg.Steps,
				Seed:          s.cfg.Seed,
				PollInterval:  s.cfg.PollInterval,
				EvalTimeout:   s.cfg.EvalTimeout,
			},
				app.WithTrainer(sum),
				app.WithEvaluator(sum),
				app.WithPredictor(sum),
				app.WithEvalState(fs.NewEvalStateFile(modelDir)),
				app.WithLogger(s.logger),
				app.WithMetrics(s.metrics),
			)
			return runner.Run(ctx, mode)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.BatchSize, "batch-size", "B", cfg.BatchSize, "batch size")
	f.BoolVarP(&cfg.Augment, "augment", "G", cfg.Augment, "add {tfr_path}_augment (and _more_augment) to training")
	f.BoolVar(&cfg.Threshold, "threshold", cfg.Threshold, "clamp each sequence to 80 dB below its maximum")
	f.IntVarP(&cfg.Steps, "steps", "S", cfg.Steps, "training batches to consume (0 = until interrupted)")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for the train shuffle (0 = time based)")
	f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "checkpoint manifest poll interval")
	f.DurationVar(&cfg.EvalTimeout, "eval-timeout", cfg.EvalTimeout, "stop evaluating after this long without a new checkpoint (0 = wait forever)")
	f.IntVar(&cfg.Prefetch, "prefetch", cfg.Prefetch, "batches to prepare ahead of the consumer")
	f.IntVar(&cfg.ShuffleBuffer, "shuffle-buffer", cfg.ShuffleBuffer, "train shuffle buffer size")
	return cmd
}
