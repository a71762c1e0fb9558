package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/masig/pricebook/cmd/pricebookctl/cli"
	"github.com/masig/pricebook/internal/activity"
	"github.com/masig/pricebook/internal/app"
	"github.com/masig/pricebook/internal/platform/db"
)

var (
	retentionDays int
	exportAction  string
	exportFormat  string
	exportTitle   string
	exportFrom    string
	exportTo      string
	exportOut     string
	archivedLimit int
)

func init() {
	jobsTriggerCmd.Flags().IntVar(&retentionDays, "retention-days", 90, "retention window for activity:prune")
	jobsArchivedCmd.Flags().IntVar(&archivedLimit, "limit", 10, "number of archived tasks to list")
	jobsCmd.AddCommand(jobsTriggerCmd, jobsInspectCmd, jobsArchivedCmd, jobsReplayCmd)

	exportCmd.Flags().StringVar(&exportAction, "action", "all", "action filter (added, edited, deleted, viewed or all)")
	exportCmd.Flags().StringVar(&exportFormat, "format", string(activity.FormatPDF), "pdf or csv")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "report title")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "inclusive start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "inclusive end date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")

	rootCmd.AddCommand(migrateCmd, exportCmd, jobsCmd)
}

var (
	rootCmd = &cobra.Command{
		Use:          "pricebookctl",
		Short:        "Operational commands for the price book service",
		SilenceUsage: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the activity log report to a file",
		RunE:  runExport,
	}

	jobsCmd = &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	jobsTriggerCmd = &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job by task name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), args[0], retentionDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}

	jobsInspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				stats, err := c.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
				return nil
			})
		},
	}

	jobsArchivedCmd = &cobra.Command{
		Use:   "archived",
		Short: "List archived tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				tasks, err := c.ListArchived(cmd.Context(), archivedLimit)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s last_err=%q\n", t.ID, t.Type, t.LastErr)
				}
				return nil
			})
		},
	}

	jobsReplayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Requeue every archived task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(func(c *cli.JobsCLI) error {
				n, err := c.RunArchived(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d tasks\n", n)
				return nil
			})
		},
	}
)

func withJobs(fn func(*cli.JobsCLI) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	c := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = c.Close() }()
	return fn(c)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	filter, err := exportFilter(cfg.ReportLocation())
	if err != nil {
		return err
	}
	pool, err := db.New(cmd.Context(), cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := activity.NewService(activity.NewRepository(pool), cfg.ReportCompany, cfg.ReportLocation())
	out, err := svc.Export(cmd.Context(), filter, exportTitle, activity.Format(exportFormat))
	if err != nil {
		return err
	}
	path := filepath.Join(exportOut, out.FileName)
	if err := os.WriteFile(path, out.Body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(out.Body))
	return nil
}

func exportFilter(loc *time.Location) (activity.ListFilter, error) {
	filter := activity.ListFilter{Action: exportAction}
	if exportFrom != "" {
		from, err := time.ParseInLocation(time.DateOnly, exportFrom, loc)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		filter.From = &from
	}
	if exportTo != "" {
		to, err := time.ParseInLocation(time.DateOnly, exportTo, loc)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	return filter, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
