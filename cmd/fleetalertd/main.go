// Command fleetalertd is the telemetry alerting engine's entry point.
// Cobra layering is grounded on cuemby-warren's cmd/warren/main.go: a
// rootCmd carrying persistent flags plus subcommands in their own files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetalertd",
	Short: "fleetalertd is the telemetry alerting engine",
	Long: `fleetalertd evaluates fact and syslog streams against a
configurable rule set, raises alert events, and fans them out to
subscribers over websockets and a chat webhook.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fleetalertd: %v\n", err)
		os.Exit(1)
	}
}
