package cmd

import (
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/khanhnv2901/seca-probe/cmd.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the seca-probe version, or with -v the build and probing capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		detailed, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()
		if !detailed {
			_, err := fmt.Fprintf(out, "seca-probe version %s\n", Version)
			return err
		}
		return writeBuildInfo(out)
	},
}

func writeBuildInfo(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	rows := [][2]string{
		{"Version:", Version},
		{"Git Commit:", GitCommit},
		{"Build Date:", BuildDate},
		{"Go Version:", runtime.Version()},
		{"OS/Arch:", runtime.GOOS + "/" + runtime.GOARCH},
		{"Dialers:", "direct, socks5"},
		{"Rate Limit:", "per-second connection cap (--rate)"},
		{"Defaults:", fmt.Sprintf("ports %d-%d, concurrency %d, timeout %s",
			consts.DefaultStartPort, consts.DefaultEndPort, consts.DefaultConcurrency, consts.DefaultProbeTimeout)},
	}
	fmt.Fprintln(tw, "seca-probe")
	for _, row := range rows {
		fmt.Fprintf(tw, "  %s\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Show build details and probing capabilities")
	rootCmd.AddCommand(versionCmd)
}
