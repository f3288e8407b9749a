package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/config"
	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	submitSeedURL     string
	submitAllowedHost string
	submitMaxPages    int
	submitTimeout     time.Duration
	submitForceJS     bool
	submitIgnorePaths []string
	submitDataDir     string
)

// submitCmd enqueues one Job for the Supervisor to pick up; it never runs a
// Crawl Engine itself, matching the "submit, don't crawl" split a
// process-supervised crawler needs once a job outlives a single invocation.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enqueue a crawl job for the supervisor to run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitSeedURL == "" {
			return fmt.Errorf("--seed-url is required")
		}
		seed, err := url.Parse(submitSeedURL)
		if err != nil {
			return fmt.Errorf("parsing --seed-url: %w", err)
		}

		env, err := config.LoadEnvConfig()
		if err != nil {
			return fmt.Errorf("loading env config: %w", err)
		}

		allowedHost := submitAllowedHost
		if allowedHost == "" {
			allowedHost = seed.Host
		}

		maxPages := submitMaxPages
		if maxPages <= 0 {
			maxPages = env.DefaultMaxPages
		}
		if maxPages > env.MaxPagesLimit {
			maxPages = env.MaxPagesLimit
		}

		st, err := store.NewBadgerStore(submitDataDir, zerolog.Nop())
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		job := jobmodel.NewJob(*seed, allowedHost, maxPages, submitTimeout, submitIgnorePaths, submitForceJS, "", time.Now(), time.Duration(env.JobExpiryHours)*time.Hour)
		if err := st.CreateJob(job); err != nil {
			return fmt.Errorf("creating job: %w", err)
		}

		fmt.Fprintf(os.Stdout, "job submitted: %s\n", job.ID())
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitSeedURL, "seed-url", "", "starting URL for the crawl")
	submitCmd.Flags().StringVar(&submitAllowedHost, "allowed-host", "", "hostname allowlist (defaults to the seed URL's host)")
	submitCmd.Flags().IntVar(&submitMaxPages, "max-pages", 0, "maximum pages to fetch (0 uses the configured default)")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 10*time.Minute, "per-job wall-clock timeout")
	submitCmd.Flags().BoolVar(&submitForceJS, "force-js", false, "start this job directly on the headless-render fetcher")
	submitCmd.Flags().StringArrayVar(&submitIgnorePaths, "ignore-path-prefix", nil, "path prefixes to exclude from the crawl")
	submitCmd.Flags().StringVar(&submitDataDir, "data-dir", "data", "directory holding the job database")
	rootCmd.AddCommand(submitCmd)
}
