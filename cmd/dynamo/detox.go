package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cmsdynamo/dynamo/pkg/config"
	"github.com/cmsdynamo/dynamo/pkg/demand"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/policy"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
	"github.com/cmsdynamo/dynamo/pkg/store"
	"github.com/cmsdynamo/dynamo/pkg/submit"
)

var detoxLog = log.WithComponent("cmd.detox")

var detoxCmd = &cobra.Command{
	Use:   "detox",
	Short: "Run one Detox eviction pass over the Default partition",
	Long: `Loads the inventory, materializes the Default partition (every
replica, every site), and runs the per-site eviction loop (§4.6) down to
the configured target occupancy. With --submit, scheduled deletions are
actually submitted; otherwise they are only logged (read-only mode).`,
	RunE: runDetox,
}

func init() {
	detoxCmd.Flags().Bool("submit", false, "Submit scheduled deletions instead of logging them")
	detoxCmd.Flags().Float64("target-occupancy", 0.9, "Fraction of site quota the eviction loop drains down to")
}

func runDetox(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	doSubmit, _ := cmd.Flags().GetBool("submit")
	targetOccupancy, _ := cmd.Flags().GetFloat64("target-occupancy")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	inv := inventory.New()
	if err := st.LoadData(ctx, inv, store.Filter{}); err != nil {
		return err
	}

	inv.Lock()
	defaultPartition := inv.NewPartition("Default")
	inv.Unlock()

	everyReplica := policy.Definition{
		Partition: defaultPartition,
		SitePred:  func(s *inventory.Site) bool { return true },
		Member:    func(br *inventory.BlockReplica) bool { return true },
	}
	policy.Materialize(inv, everyReplica)

	dmd := demand.New(demand.Config{})

	detoxPolicy := policy.DetoxPolicy{
		Partition:               everyReplica.Partition,
		DefaultDecision:         policy.DecisionDelete,
		DeletionVolumePerRequestTB: cfg.Detox.DeletionVolumePerRequest,
		DeletionPerIterationFrac:   cfg.Detox.DeletionPerIteration,
		TargetSiteOccupancyFrac:    targetOccupancy,
		SiteRequirement: func(s *inventory.Site, partitionName string, initialCheck bool) bool {
			sp := s.Partition(partitionName)
			if sp == nil || sp.QuotaBytes == 0 {
				return false
			}
			occupancy := float64(sp.Occupancy()) / float64(sp.QuotaBytes)
			return occupancy > targetOccupancy
		},
	}

	client, err := restclient.New(restclient.Config{
		BaseURL:        cfg.Phedex.URLBase,
		CredentialFile: cfg.Webservice.X509Key,
	})
	if err != nil {
		return err
	}
	mode := submit.ModeReadOnly
	if doSubmit {
		mode = submit.ModeLive
	}
	submitter := submit.New(client, submit.Config{Mode: mode, ChunkSizeBytes: cfg.Phedex.SubscriptionChunkSize})

	var deletions []*inventory.DatasetReplica
	for _, s := range inv.Sites() {
		for _, sd := range detoxPolicy.RunEviction(s, dmd) {
			detoxLog.Info().Str("site", s.Name).Str("dataset", sd.Replica.Dataset.Name).Str("reason", sd.Reason).Msg("scheduled deletion")
			deletions = append(deletions, sd.Replica)
		}
	}

	if len(deletions) == 0 {
		detoxLog.Info().Msg("no deletions scheduled")
		return nil
	}

	results, err := submitter.ScheduleDeletions(ctx, deletions, cfg.Inventory.IncludedGroups, "dynamo detox")
	if err != nil {
		return err
	}
	detoxLog.Info().Int("requests", len(results)).Msg("deletion batch submitted")
	return nil
}
