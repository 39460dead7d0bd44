package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wmbench/internal/config"
	"wmbench/internal/conversion"
	"wmbench/internal/corpus"
	"wmbench/internal/database"
	"wmbench/internal/dataset"
	"wmbench/internal/evaluation"
	"wmbench/internal/watermarking"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wmbench",
		Short:         "Audio watermark robustness evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $WMBENCH_CONFIG)")
	root.AddCommand(newRunCmd(), newProvidersCmd())
	return root
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := cfg.Level(); err == nil {
		log.SetLevel(lvl)
	}
	return cfg, log, nil
}

func newRunCmd() *cobra.Command {
	var (
		rows int
		out  string
		dir  string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate watermark providers over a random sample of the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("rows") {
				cfg.Rows = rows
			}
			if flags.Changed("out") {
				cfg.OutputFile = out
			}
			if flags.Changed("dir") {
				cfg.AudioDir = dir
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEvaluation(ctx, cfg, log)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&rows, "rows", "n", 0, "number of clips to evaluate")
	f.StringVarP(&out, "out", "o", "", "CSV file to append results to")
	f.StringVarP(&dir, "dir", "d", "", "directory scanned for audio clips")
	f.Int64Var(&seed, "seed", 0, "random seed; 0 picks one from the clock")
	return cmd
}

func runEvaluation(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	providerSpecs, err := cfg.ProviderSpecs()
	if err != nil {
		return err
	}
	set, err := watermarking.NewSet(providerSpecs)
	if err != nil {
		return err
	}
	convSpec, err := cfg.ConversionSpec()
	if err != nil {
		return err
	}
	conv, err := conversion.New(convSpec)
	if err != nil {
		return err
	}
	if convSpec.Kind == conversion.IdentityKind && len(cfg.Attacks) > 0 {
		log.Warn("identity conversion configured, attack columns measure the wav round trip only")
	}
	attacks, err := cfg.AttackSpecs()
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	c, err := corpus.Scan(cfg.AudioDir, cfg.Extensions, rng)
	if err != nil {
		return err
	}

	runID := uuid.New()
	entry := log.WithFields(logrus.Fields{"run": runID.String(), "seed": seed})
	entry.WithFields(logrus.Fields{
		"dir":       cfg.AudioDir,
		"clips":     c.Len(),
		"rows":      cfg.Rows,
		"providers": set.Len(),
		"attacks":   len(attacks),
	}).Info("starting evaluation")

	var sink dataset.Sink = dataset.NewCSVSink(cfg.OutputFile, cfg.MissingMarker)
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, entry)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		sink = dataset.Multi{sink, dataset.NewPostgresSink(pool, runID)}
	}

	o, err := evaluation.New(evaluation.Options{
		Providers:    set.All(),
		Attacks:      attacks,
		Converter:    conv,
		ArtifactPath: cfg.TempArtifact,
		BitDepth:     cfg.BitDepth,
		Rand:         rng,
		Log:          entry,
	})
	if err != nil {
		return err
	}

	summary, err := o.Run(ctx, c, cfg.Rows, sink)
	entry.WithFields(logrus.Fields{
		"rows":    summary.Rows,
		"skipped": summary.Skipped,
		"missing": summary.MissingCells,
		"out":     cfg.OutputFile,
	}).Info("evaluation finished")
	return err
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered kinds and the configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "watermark kinds:  %v\n", watermarking.ListKinds())
			fmt.Fprintf(w, "conversion kinds: %v\n", conversion.Kinds())

			specs, err := cfg.ProviderSpecs()
			if err != nil {
				return err
			}
			set, err := watermarking.NewSet(specs)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "configured providers:")
			for _, a := range set.ListSupportedAlgorithms() {
				fmt.Fprintf(w, "  %-20s %s\n", a.Name, a.Description)
			}
			return nil
		},
	}
}
