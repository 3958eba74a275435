package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/audit"
	"mercator-hq/pulse/pkg/audit/storage"
	"mercator-hq/pulse/pkg/cli"
	"mercator-hq/pulse/pkg/config"
)

var auditFlags struct {
	producer string
	since    time.Duration
	failed   bool
	limit    int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent ingestion requests from the audit log",
	Long: `Read the audit database configured under audit: and list ingestion
requests, newest first. The server does not need to be running.

Examples:
  # Last 100 requests
  pulse audit --config /etc/pulse/config.yaml

  # Failed requests from one producer in the last hour
  pulse audit --producer web --failed --since 1h

  # Machine-readable
  pulse audit --limit 10 --output json`,
	Args: cobra.NoArgs,
	RunE: showAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditFlags.producer, "producer", "", "only requests from this producer")
	auditCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only requests newer than this (e.g. 30m)")
	auditCmd.Flags().BoolVar(&auditFlags.failed, "failed", false, "only non-2xx requests")
	auditCmd.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultLimit, "maximum number of requests")
}

type auditReport struct {
	Total   int64           `json:"total"`
	Records []*audit.Record `json:"records"`
}

func (r auditReport) String() string {
	if len(r.Records) == 0 {
		return "no matching requests"
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPRODUCER\tSTATUS\tACCEPTED\tBYTES\tDURATION\tERROR")
	for _, rec := range r.Records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			rec.Time.Format(time.RFC3339), rec.Producer, rec.Status, rec.Accepted,
			rec.Bytes, rec.Duration.Round(time.Microsecond), rec.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(&sb, "%d of %d matching request(s)", len(r.Records), r.Total)
	return sb.String()
}

func showAudit(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	if auditFlags.limit <= 0 {
		return cli.NewConfigError("--limit", "must be positive")
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Audit.Driver == storage.DriverMemory {
		return cli.NewConfigError("audit.driver", "the memory audit log cannot be read from another process")
	}

	store, err := storage.Open(storage.Config{
		Driver: cfg.Audit.Driver,
		Path:   cfg.Audit.Path,
	}, nil)
	if err != nil {
		return cli.NewCommandError("audit", err)
	}
	defer store.Close()

	q := &audit.Query{
		Producer:   auditFlags.producer,
		FailedOnly: auditFlags.failed,
		Limit:      auditFlags.limit,
	}
	if auditFlags.since > 0 {
		start := time.Now().Add(-auditFlags.since)
		q.StartTime = &start
	}

	ctx := cmd.Context()
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("audit", err)
	}
	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("audit", err)
	}

	return f.FormatTo(cmd.OutOrStdout(), auditReport{Total: total, Records: records})
}
