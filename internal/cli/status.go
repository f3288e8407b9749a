package cmd

import (
	"fmt"
	"os"

	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusDataDir string

// statusCmd reports a Job's lifecycle state, progress counters, and
// registered artifacts.
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's state, progress, and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing job id: %w", err)
		}

		st, err := store.NewBadgerStore(statusDataDir, zerolog.Nop())
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		job, err := st.GetJob(jobID)
		if err != nil {
			return fmt.Errorf("loading job: %w", err)
		}

		fmt.Fprintf(os.Stdout, "id:             %s\n", job.ID())
		fmt.Fprintf(os.Stdout, "state:          %s\n", job.State())
		fmt.Fprintf(os.Stdout, "seed_url:       %s\n", job.SeedURL().String())
		fmt.Fprintf(os.Stdout, "site_status:    %s\n", job.SiteStatus())
		fmt.Fprintf(os.Stdout, "pages_fetched:  %d\n", job.PagesFetched())
		fmt.Fprintf(os.Stdout, "pages_exported: %d\n", job.PagesExported())
		fmt.Fprintf(os.Stdout, "errors_count:   %d\n", job.ErrorsCount())
		fmt.Fprintf(os.Stdout, "restart_count:  %d\n", job.RestartCount())
		if job.LastError() != "" {
			fmt.Fprintf(os.Stdout, "last_error:     %s\n", job.LastError())
		}

		artifacts, err := st.ListArtifacts(jobID)
		if err != nil {
			return fmt.Errorf("listing artifacts: %w", err)
		}
		if len(artifacts) == 0 {
			return nil
		}
		fmt.Fprintln(os.Stdout, "artifacts:")
		for _, artifact := range artifacts {
			fmt.Fprintf(os.Stdout, "  %-10s %10d bytes  %s\n", artifact.Kind(), artifact.SizeByte(), artifact.Path())
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDataDir, "data-dir", "data", "directory holding the job database")
	rootCmd.AddCommand(statusCmd)
}
