package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dynamo",
	Short: "Dynamo - federated grid storage inventory and placement",
	Long: `Dynamo maintains an inventory of datasets, blocks, files, sites,
groups, and replicas across a federated storage grid, refreshes it from
remote catalogs, and runs the Detox eviction engine and the
Dealer/Enforcer replication engines against it.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Dynamo version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "/etc/dynamo/dynamo.yaml", "Path to the dynamo configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve /metrics and /healthz on (empty disables)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(detoxCmd)
	rootCmd.AddCommand(dealerCmd)
	rootCmd.AddCommand(enforcerCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// serveMetrics starts the Prometheus/health endpoint in the background if
// --metrics-addr was given; it is never required for correctness.
func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("cmd").Warn().Err(err).Msg("metrics server stopped")
		}
	}()
}
