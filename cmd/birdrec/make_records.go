package main

import (
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/birdrec/internal/cliconfig"
	"github.com/bft-labs/birdrec/pkg/dataset"
	"github.com/bft-labs/birdrec/pkg/log"
	"github.com/bft-labs/birdrec/pkg/transform"
)

func newMakeRecordsCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	var devInds string

	cmd := &cobra.Command{
		Use:   "make-records <data_path> <out_path>",
		Short: "Write {out_path}_train.tfrecords and {out_path}_dev.tfrecords from labeled audio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			kind, err := transform.ParseKind(s.cfg.Transform)
			if err != nil {
				return err
			}
			if err := kind.Supported(); err != nil {
				return err
			}
			src, err := dataset.Scan(args[0], s.cfg.Datasets, s.cfg.NSeqs)
			if err != nil {
				return err
			}

			opts := dataset.DefaultWriteOptions()
			opts.PropTrain = s.cfg.PropTrain
			opts.DevInds = devInds
			opts.Transform = kind
			opts.Signal.ResampleRate = s.cfg.ResampleRate
			if s.cfg.Seed != 0 {
				opts.Rand = rand.New(rand.NewSource(s.cfg.Seed))
			}
			opts.Logger = s.logger
			opts.Metrics = s.metrics
			opts.ProgressBar = s.cfg.Progress
			opts.Total = src.Len()

			s.logger.Info("making records",
				log.String("data_path", args[0]),
				log.String("out_path", args[1]),
				log.Int("files", src.Len()))
			_, err = dataset.Write(ctx, src, args[1], opts)
			return err
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.NSeqs, "nseqs", "n", cfg.NSeqs, "sequences to use per dataset (0 = all)")
	f.StringVarP(&cfg.Transform, "transform", "t", cfg.Transform, "sequence transform: raw, stft or mel")
	f.Float64Var(&cfg.PropTrain, "prop-train", cfg.PropTrain, "probability of assigning a sequence to the train split")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for the split (0 = time based)")
	f.BoolVar(&cfg.Progress, "progress", cfg.Progress, "show a progress bar")
	f.StringSliceVar(&cfg.Datasets, "datasets", cfg.Datasets, "datasets to read from data_path")
	f.IntVar(&cfg.ResampleRate, "resample-rate", cfg.ResampleRate, "resample audio to this rate on load (0 = native)")
	f.StringVar(&devInds, "dev-inds", "", "file of dev indices for a deterministic split (not supported)")
	return cmd
}
