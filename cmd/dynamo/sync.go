package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmsdynamo/dynamo/pkg/adapters"
	"github.com/cmsdynamo/dynamo/pkg/config"
	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/metrics"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
	"github.com/cmsdynamo/dynamo/pkg/store"
	dynamosync "github.com/cmsdynamo/dynamo/pkg/sync"
)

var syncLog = log.WithComponent("cmd.sync")

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the periodic inventory synchronizer",
	Long: `Loads the inventory from the persistent store, then runs the
six-phase synchronization cycle (§4.4) against the configured remote
catalogs. With --daemon it repeats on the configured refresh interval;
otherwise it runs one cycle and exits.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("daemon", false, "Run continuously on the configured refresh interval instead of once")
}

func runSync(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	daemon, _ := cmd.Flags().GetBool("daemon")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	serveMetrics(metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	inv := inventory.New()
	loadFilter := store.Filter{
		Sites:    cfg.Inventory.IncludedSites,
		Groups:   cfg.Inventory.IncludedGroups,
		Datasets: nil,
	}
	if err := st.LoadData(ctx, inv, loadFilter); err != nil {
		syncLog.Warn().Err(err).Msg("initial load_data failed; starting from an empty inventory")
	}

	client, err := restclient.New(restclient.Config{
		BaseURL:        cfg.Phedex.URLBase,
		CredentialFile: cfg.Webservice.X509Key,
		MaxRetries:     int(cfg.Webservice.NumAttempts),
	})
	if err != nil {
		return err
	}

	dmd := demand.New(demand.Config{
		WeightTimeBins:  convertTimeBins(cfg.Demand.WeightTimeBins),
		AccessIncrement: time.Duration(cfg.Demand.AccessHistory.IncrementS) * time.Second,
		AccessMaxBack:   time.Duration(cfg.Demand.AccessHistory.MaxBackQuery) * time.Second,
	})

	var lockSources []dynamosync.LockSourceConfig
	for _, src := range cfg.Weblock.Sources {
		lockSources = append(lockSources, dynamosync.LockSourceConfig{
			Resource: src.URL,
			Type:     adapters.LockSourceType(src.Kind),
		})
	}

	syncer := dynamosync.New(dynamosync.Config{
		RefreshInterval:  time.Duration(cfg.Inventory.RefreshMin) * time.Second,
		SiteFilter:       cfg.Inventory.IncludedSites,
		GroupFilter:      cfg.Inventory.IncludedGroups,
		WaitroomColumnID: cfg.SSB.WaitroomColumnID,
		MorgueColumnID:   cfg.SSB.MorgueColumnID,
		LockSources:      lockSources,
	}, client, inv, st, dmd)

	syncer.RefreshDemand(ctx)

	if daemon {
		collector := metrics.NewCollector(inv)
		collector.Start()
		defer collector.Stop()

		syncer.Start(ctx)
		return nil
	}

	return syncer.RunCycle(ctx)
}

func convertTimeBins(bins []config.TimeBinConfig) []demand.TimeBin {
	out := make([]demand.TimeBin, 0, len(bins))
	for _, b := range bins {
		out = append(out, demand.TimeBin{
			Delta:  time.Duration(b.DeltaS) * time.Second,
			Weight: b.Weight,
		})
	}
	return out
}
