// Package cli holds the roledash command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

// Jobs is the queue surface the jobs commands drive. JobsCLI implements it.
type Jobs interface {
	Trigger(ctx context.Context, name string, ids []string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// Deps are supplied by main once configuration is loaded.
type Deps struct {
	// Serve runs the HTTP server until ctx is cancelled.
	Serve func(ctx context.Context) error
	// OpenJobs connects to the job queue.
	OpenJobs func() (Jobs, error)
}

// NewRootCommand builds the roledash command tree. Running it without a
// subcommand starts the server.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "roledash",
		Short: "Role-based user directory dashboard API",
		Long: `roledash serves the user directory API and manages its export queue.

Example usage:
  roledash                              # run the HTTP server
  roledash jobs trigger users:export    # export the whole directory now
  roledash jobs trigger users:export 3 7
  roledash jobs stats                   # queue depth
  roledash jobs scheduled -n 5          # upcoming scheduled tasks`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Serve(cmd.Context())
		},
	})
	root.AddCommand(newJobsCommand(deps.OpenJobs))
	return root
}

func newJobsCommand(open func() (Jobs, error)) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	// withJobs opens the queue for one command run.
	withJobs := func(run func(cmd *cobra.Command, jobs Jobs, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			jobs, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = jobs.Close() }()
			return run(cmd, jobs, args)
		}
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "trigger <job> [id...]",
		Short: "Enqueue a job now",
		Args:  cobra.MinimumNArgs(1),
		RunE: withJobs(func(cmd *cobra.Command, jobs Jobs, args []string) error {
			info, err := jobs.Trigger(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		}),
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(cmd *cobra.Command, jobs Jobs, args []string) error {
			stats, err := jobs.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		}),
	})

	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List upcoming scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(cmd *cobra.Command, jobs Jobs, args []string) error {
			size, _ := cmd.Flags().GetInt("size")
			tasks, err := jobs.ListScheduled(cmd.Context(), size)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format(time.RFC3339))
			}
			return nil
		}),
	}
	scheduled.Flags().IntP("size", "n", 10, "number of tasks to list")
	jobsCmd.AddCommand(scheduled)

	return jobsCmd
}
