package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/application"
	appscan "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/output"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect saved scan reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reportService(cmd)
		if err != nil {
			return err
		}
		reports, err := svc.ListReports(cmd.Context())
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "no reports in %s\n", getAppContext(cmd).ResultsDir)
			return nil
		}
		return writeReportTable(cmd.OutOrStdout(), reports)
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, ok := output.ParseFormat(formatName)
		if !ok {
			return &UsageError{Err: fmt.Errorf("unsupported format %q (use text or json)", formatName)}
		}

		svc, err := reportService(cmd)
		if err != nil {
			return err
		}
		report, err := svc.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if err := output.Write(cmd.OutOrStdout(), report, format, formatStatusWithColor); err != nil {
			return err
		}
		return output.WriteSummary(cmd.ErrOrStderr(), report)
	},
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reportService(cmd)
		if err != nil {
			return err
		}
		if err := svc.DeleteReport(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s deleted report %s\n", colorSuccess("✓"), args[0])
		return nil
	},
}

func init() {
	reportShowCmd.Flags().String("format", string(output.FormatText), "report format: text or json")
	reportCmd.AddCommand(reportListCmd, reportShowCmd, reportDeleteCmd)
	rootCmd.AddCommand(reportCmd)
}

func reportService(cmd *cobra.Command) (*appscan.Service, error) {
	appCtx := getAppContext(cmd)
	container, err := application.NewContainer(appCtx.ResultsDir, application.Options{Logger: appCtx.Logger})
	if err != nil {
		return nil, err
	}
	return container.ScanService, nil
}

func writeReportTable(w io.Writer, reports []*scan.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tADDRESS\tRANGE\tOPEN\tCLOSED\tERROR\tSTARTED\tSTATE")
	for _, r := range reports {
		summary := r.Summary()
		state := "complete"
		if r.Cancelled() {
			state = "cancelled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID(),
			r.Target().Host(),
			r.Target().Addr(),
			r.Range(),
			summary.Open,
			summary.Closed,
			summary.Errors,
			r.StartedAt().UTC().Format(time.RFC3339),
			state)
	}
	return tw.Flush()
}
