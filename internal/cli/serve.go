package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crawlkit-dev/crawlkit/internal/config"
	"github.com/crawlkit-dev/crawlkit/internal/engine"
	"github.com/crawlkit-dev/crawlkit/internal/finalizer"
	"github.com/crawlkit-dev/crawlkit/internal/obslog"
	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/crawlkit-dev/crawlkit/internal/supervisor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serveDataDir    string
	serveOutputRoot string
	serveLogLevel   string
)

// serveCmd runs the supervisor poll loop (spec.md §4.3) until interrupted,
// claiming and running queued jobs one at a time and finalizing each as it
// drains.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor loop, claiming and executing queued jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(serveLogLevel)
		if err != nil {
			return fmt.Errorf("parsing --log-level: %w", err)
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
		obs := obslog.NewZerologSinkWithLogger(logger)

		env, err := config.LoadEnvConfig()
		if err != nil {
			return fmt.Errorf("loading env config: %w", err)
		}

		st, err := store.NewBadgerStore(serveDataDir, logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		eng := engine.NewEngine(st, env, serveOutputRoot, obs)
		fin := finalizer.NewFinalizer(st, obs)
		sup := supervisor.New(st, env, eng, fin, serveOutputRoot, obs)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info().Str("data_dir", serveDataDir).Str("output_root", serveOutputRoot).Msg("supervisor starting")
		err = sup.Run(ctx)
		if err == context.Canceled {
			logger.Info().Msg("supervisor stopped")
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "data", "directory holding the job database")
	serveCmd.Flags().StringVar(&serveOutputRoot, "output-root", "output", "root directory for per-job crawl artifacts")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd)
}
