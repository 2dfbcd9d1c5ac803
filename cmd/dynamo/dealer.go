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

var dealerLog = log.WithComponent("cmd.dealer")

var dealerCmd = &cobra.Command{
	Use:   "dealer",
	Short: "Run one Dealer demand-driven replication pass",
	Long: `Loads the inventory and demand signals and evaluates the Dealer
policy (§4.6): for every dataset whose request_weight/num_existing_replicas
exceeds the configured threshold, schedules one additional copy subject to
the configured caps. With --submit, requests are actually submitted;
otherwise they are only logged (read-only mode).`,
	RunE: runDealer,
}

func init() {
	dealerCmd.Flags().Bool("submit", false, "Submit replication requests instead of logging them")
}

func runDealer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	doSubmit, _ := cmd.Flags().GetBool("submit")

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

	dmd := demand.New(demand.Config{})

	balancerRules, err := policy.ParseBalancerRules(cfg.Dealer.BalancerTargetReasons)
	if err != nil {
		return err
	}

	dealer := policy.NewDealer(policy.DealerConfig{
		PartitionName:           "Default",
		IncludedSitePatterns:    cfg.Dealer.IncludedSites,
		RequestToReplicaThresh:  cfg.Dealer.RequestToReplicaThreshold,
		MaxCopyPerSiteTB:        cfg.Dealer.MaxCopyPerSiteTB,
		MaxCopyTotalTB:          cfg.Dealer.MaxCopyTotalTB,
		MaxReplicas:             cfg.Dealer.MaxReplicas,
		MaxDatasetSizeTB:        cfg.Dealer.MaxDatasetSizeTB,
		TargetSiteOccupancyFrac: cfg.Dealer.TargetSiteOccupancy,
		OverflowFactor:          cfg.Dealer.OverflowFactor,
		BalancerRules:           balancerRules,
	})

	requests := dealer.Evaluate(inv, dmd)
	if len(requests) == 0 {
		dealerLog.Info().Msg("no replication requests emitted")
		return nil
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

	var copies []*inventory.DatasetReplica
	inv.Lock()
	for _, req := range requests {
		dealerLog.Info().Str("dataset", req.Dataset.Name).Str("site", req.Site.Name).Msg("replication request")
		dr, ok := req.Dataset.Replica(req.Site.Name)
		if !ok {
			dr = inv.NewDatasetReplica(req.Dataset, req.Site)
		}
		copies = append(copies, dr)
	}
	inv.Unlock()

	results, err := submitter.ScheduleCopies(ctx, copies, "dynamo dealer")
	if err != nil {
		return err
	}
	dealerLog.Info().Int("requests", len(results)).Msg("copy batch submitted")
	return nil
}
