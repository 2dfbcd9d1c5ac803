package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cmsdynamo/dynamo/pkg/config"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/policy"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
	"github.com/cmsdynamo/dynamo/pkg/store"
	"github.com/cmsdynamo/dynamo/pkg/submit"
)

var enforcerLog = log.WithComponent("cmd.enforcer")

var enforcerCmd = &cobra.Command{
	Use:   "enforcer",
	Short: "Evaluate num_copies replication rules and submit copy requests",
	Long: `Loads the inventory and evaluates the enforcer rule set (§4.6)
against every matching dataset, emitting the shuffled (dataset, site)
replication request list. With --submit, requests are actually submitted;
otherwise they are only logged (read-only mode).`,
	RunE: runEnforcer,
}

func init() {
	enforcerCmd.Flags().Bool("submit", false, "Submit replication requests instead of logging them")
	enforcerCmd.Flags().Int("num-copies", 2, "Target number of complete destination replicas")
	enforcerCmd.Flags().StringSlice("source-sites", nil, "Source site name patterns (OR-list)")
	enforcerCmd.Flags().StringSlice("destination-sites", nil, "Destination site name patterns (OR-list)")
	enforcerCmd.Flags().StringSlice("datasets", nil, "Dataset name patterns (OR-list)")
}

func runEnforcer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	doSubmit, _ := cmd.Flags().GetBool("submit")
	numCopies, _ := cmd.Flags().GetInt("num-copies")
	sourceSites, _ := cmd.Flags().GetStringSlice("source-sites")
	destSites, _ := cmd.Flags().GetStringSlice("destination-sites")
	datasets, _ := cmd.Flags().GetStringSlice("datasets")

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

	rule := policy.EnforcerRule{
		NumCopies:               numCopies,
		SourceSitePatterns:      sourceSites,
		DestinationSitePatterns: destSites,
		DatasetNamePatterns:     datasets,
	}
	requests := rule.Evaluate(inv)
	if len(requests) == 0 {
		enforcerLog.Info().Msg("no replication requests emitted")
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
		enforcerLog.Info().Str("dataset", req.Dataset.Name).Str("site", req.Site.Name).Msg("replication request")
		dr, ok := req.Dataset.Replica(req.Site.Name)
		if !ok {
			dr = inv.NewDatasetReplica(req.Dataset, req.Site)
		}
		copies = append(copies, dr)
	}
	inv.Unlock()

	results, err := submitter.ScheduleCopies(ctx, copies, "dynamo enforcer")
	if err != nil {
		return err
	}
	enforcerLog.Info().Int("requests", len(results)).Msg("copy batch submitted")
	return nil
}
