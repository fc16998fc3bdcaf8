package cmd

import (
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/output"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Scan  ScanRuntimeConfig
	Serve ServeRuntimeConfig
}

// ScanRuntimeConfig consolidates flag-driven settings for the scan command.
type ScanRuntimeConfig struct {
	Host        string
	Ports       string
	StartPort   int
	EndPort     int
	Concurrency int
	TimeoutMS   int
	Rate        float64
	Proxy       string
	Format      string
	Save        bool
	Progress    bool
	NoColor     bool
	Telemetry   bool
}

// ServeRuntimeConfig captures options of the API server.
type ServeRuntimeConfig struct {
	Addr        string
	AuthToken   string
	MaxJobs     int
	JobHistory  int
	CORSOrigins []string
	RateLimit   int
	RateBurst   int
	Save        bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	ports := scan.DefaultPortRange()
	return &CLIConfig{
		Scan: ScanRuntimeConfig{
			StartPort:   ports.Start(),
			EndPort:     ports.End(),
			Concurrency: consts.DefaultConcurrency,
			TimeoutMS:   int(consts.DefaultProbeTimeout.Milliseconds()),
			Format:      string(output.FormatText),
		},
		Serve: ServeRuntimeConfig{
			Addr:      "127.0.0.1:8080",
			MaxJobs:    4,
			JobHistory: 1000,
			RateLimit:  10,
			RateBurst:  20,
			Save:       true,
		},
	}
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	applyStringDefault(flags, "ports", "scan.ports", &cliConfig.Scan.Ports)
	applyIntDefault(flags, "start-port", "scan.start_port", &cliConfig.Scan.StartPort)
	applyIntDefault(flags, "end-port", "scan.end_port", &cliConfig.Scan.EndPort)
	applyIntDefault(flags, "concurrency", "scan.concurrency", &cliConfig.Scan.Concurrency)
	applyIntDefault(flags, "timeout-ms", "scan.timeout_ms", &cliConfig.Scan.TimeoutMS)
	applyStringDefault(flags, "proxy", "scan.proxy", &cliConfig.Scan.Proxy)
	applyStringDefault(flags, "format", "scan.format", &cliConfig.Scan.Format)
	applyBoolDefault(flags, "telemetry", "scan.telemetry", &cliConfig.Scan.Telemetry)

	if viper.IsSet("scan.rate") && !flagChanged(flags, "rate") {
		cliConfig.Scan.Rate = viper.GetFloat64("scan.rate")
	}

	applyStringDefault(flags, "auth-token", "serve.auth_token", &cliConfig.Serve.AuthToken)
	applyIntDefault(flags, "max-jobs", "serve.max_jobs", &cliConfig.Serve.MaxJobs)
	applyIntDefault(flags, "job-history", "serve.job_history", &cliConfig.Serve.JobHistory)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func applyIntDefault(flags *pflag.FlagSet, name, key string, target *int) {
	if !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	*target = viper.GetInt(key)
}

func applyStringDefault(flags *pflag.FlagSet, name, key string, target *string) {
	if !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	*target = viper.GetString(key)
}

func applyBoolDefault(flags *pflag.FlagSet, name, key string, target *bool) {
	if !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	*target = viper.GetBool(key)
}
