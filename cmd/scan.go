package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-probe/internal/application"
	appscan "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/output"
	"github.com/khanhnv2901/seca-probe/internal/prober"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe a TCP port range on one host",
	Long: `Attempt a TCP connection to every port in the range and classify each
port as OPEN, CLOSED or ERROR. Only scan hosts you are authorized to test.`,
	Example: `  seca-probe scan --host 192.0.2.10
  seca-probe scan --host example.com --start-port 20 --end-port 443 --concurrency 200
  seca-probe scan --host example.com --ports 8000-8100
  seca-probe scan --host 10.0.0.5 --proxy socks5://127.0.0.1:1080 --format json --save`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	flags := scanCmd.Flags()
	cfg := &cliConfig.Scan
	flags.StringVar(&cfg.Host, "host", "", "hostname, IP literal or URL to scan (required)")
	flags.StringVar(&cfg.Ports, "ports", cfg.Ports, "port range as N or N-M (replaces --start-port/--end-port)")
	flags.IntVar(&cfg.StartPort, "start-port", cfg.StartPort, "first port of the range")
	flags.IntVar(&cfg.EndPort, "end-port", cfg.EndPort, "last port of the range (inclusive)")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "maximum probes in flight")
	flags.IntVar(&cfg.TimeoutMS, "timeout-ms", cfg.TimeoutMS, "per-probe connect timeout in milliseconds")
	flags.Float64Var(&cfg.Rate, "rate", cfg.Rate, "maximum new connections per second (0 = unlimited)")
	flags.StringVar(&cfg.Proxy, "proxy", cfg.Proxy, "route probes through a SOCKS5 proxy (socks5://[user:pass@]host:port)")
	flags.StringVar(&cfg.Format, "format", cfg.Format, "report format: text or json")
	flags.BoolVar(&cfg.Save, "save", cfg.Save, "persist the report in the results directory")
	flags.BoolVar(&cfg.Progress, "progress", cfg.Progress, "show a progress line on stderr")
	flags.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output")
	flags.BoolVar(&cfg.Telemetry, "telemetry", cfg.Telemetry, "append scan metrics to telemetry.jsonl in the results directory")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	cfg := appCtx.Config.Scan

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return &UsageError{Err: fmt.Errorf("--host is required")}
	}
	format, ok := output.ParseFormat(cfg.Format)
	if !ok {
		return &UsageError{Err: fmt.Errorf("unsupported format %q (use text or json)", cfg.Format)}
	}
	if err := applyPortsFlag(cmd, &cfg); err != nil {
		return err
	}
	if cfg.Rate < 0 {
		return &UsageError{Err: fmt.Errorf("--rate must not be negative")}
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	req := appscan.Request{
		Host:        host,
		StartPort:   cfg.StartPort,
		EndPort:     cfg.EndPort,
		Concurrency: cfg.Concurrency,
		Timeout:     time.Duration(cfg.TimeoutMS) * time.Millisecond,
		Save:        cfg.Save,
	}
	ports, _, err := req.Validate()
	if err != nil {
		return err
	}

	container, err := application.NewContainer(appCtx.ResultsDir, application.Options{
		Proxy:         cfg.Proxy,
		RateLimit:     cfg.Rate,
		LookupTimeout: consts.DefaultLookupTimeout,
		Logger:        appCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errOut := cmd.ErrOrStderr()
	if pd, ok := container.Dialer.(*prober.ProxyDialer); ok {
		fmt.Fprintf(errOut, "%s probing %s ports %s via SOCKS5 proxy %s\n", colorInfo("→"), host, ports, pd.Address())
	}
	var progress *progressPrinter
	if cfg.Progress {
		progress = newProgressPrinter(errOut, ports.Len(), host)
		req.Progress = progress
		progress.Start()
	}

	report, scanErr := container.ScanService.Run(ctx, req)
	if progress != nil {
		progress.Stop()
	}
	if report == nil {
		return scanErr
	}

	if err := output.Write(cmd.OutOrStdout(), report, format, formatStatusWithColor); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := output.WriteSummary(errOut, report); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if report.Cancelled() {
		fmt.Fprintf(errOut, "%s scan interrupted, partial report above\n", colorWarn("!"))
	}
	if cfg.Save && !hasSaveFailure(scanErr) {
		fmt.Fprintf(errOut, "%s report saved as %s\n", colorInfo("→"), report.ID())
	}

	if cfg.Telemetry {
		if err := recordTelemetry(appCtx.ResultsDir, "scan", report); err != nil {
			appCtx.Logger.Warn("failed to record telemetry", zap.Error(err))
		}
	}

	return scanErr
}

// applyPortsFlag replaces the start and end port with the --ports range. An
// explicit --ports conflicts with --start-port and --end-port; a configured
// scan.ports yields to them.
func applyPortsFlag(cmd *cobra.Command, cfg *ScanRuntimeConfig) error {
	flags := cmd.Flags()
	boundsSet := flagChanged(flags, "start-port") || flagChanged(flags, "end-port")
	if flagChanged(flags, "ports") && boundsSet {
		return &UsageError{Err: fmt.Errorf("--ports cannot be combined with --start-port or --end-port")}
	}
	if strings.TrimSpace(cfg.Ports) == "" || boundsSet {
		return nil
	}
	ports, err := scan.ParsePortRange(cfg.Ports)
	if err != nil {
		return err
	}
	cfg.StartPort, cfg.EndPort = ports.Start(), ports.End()
	return nil
}

// hasSaveFailure reports whether err carries a persistence failure from the scan service.
func hasSaveFailure(err error) bool {
	return errors.Is(err, sharedErrors.ErrRepositoryOperation) || errors.Is(err, sharedErrors.ErrSerializationFailed)
}
