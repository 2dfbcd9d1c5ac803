package adapters

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cmsdynamo/dynamo/pkg/executor"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var detailLog = log.WithComponent("adapters.datasetdetail")

const (
	constituentBatchSize = 100
	statusBatchSize      = 1000
	openBlockAgeLimit    = 48 * time.Hour
)

type remoteBlockEntry struct {
	Name     string `json:"name"` // guid only
	Size     uint64 `json:"bytes"`
	NumFiles int    `json:"nfiles"`
	IsOpen   bool   `json:"is_open"`
	LastOpen int64  `json:"last_open_time"`
}

type remoteDatasetEntry struct {
	Name   string             `json:"name"`
	Blocks []remoteBlockEntry `json:"blocks"`
}

type constituentResponse struct {
	Datasets []remoteDatasetEntry `json:"dbs"`
}

// FillDatasetDetail runs the two-phase dataset-detail adapter (§4.3.4) over
// the named datasets: the constituent check, followed by the secondary
// open-block check for any block it flags.
func FillDatasetDetail(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, datasetNames []string) error {
	flagged, err := constituentCheck(ctx, client, inv, datasetNames)
	if err != nil {
		return err
	}
	if err := secondaryOpenBlockCheck(ctx, client, inv, flagged); err != nil {
		return err
	}
	return statusTypeVersionFill(ctx, client, inv, datasetNames)
}

// flaggedBlock names a block that needs the secondary open-block check.
type flaggedBlock struct {
	datasetName string
	blockName   inventory.InternalBlockName
}

func constituentCheck(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, datasetNames []string) ([]flaggedBlock, error) {
	batches := chunkStrings(datasetNames, constituentBatchSize)
	tasks := make([]executor.Task, len(batches))
	results := make([][]flaggedBlock, len(batches))

	for i, batch := range batches {
		i, batch := i, batch
		tasks[i] = func(ctx context.Context) error {
			var resp constituentResponse
			opts := make([]restclient.Pair, 0, len(batch))
			for _, name := range batch {
				opts = append(opts, restclient.Pair{Key: "dataset", Value: name})
			}
			if err := client.Request(ctx, "/filesummaries", opts, restclient.MethodPOST, restclient.EncodingURL, &resp); err != nil {
				detailLog.Warn().Err(err).Msg("constituent check batch failed, skipping")
				return nil
			}

			var flagged []flaggedBlock
			inv.Lock()
			for _, rd := range resp.Datasets {
				d, ok := inv.DatasetNoLock(rd.Name)
				if !ok {
					continue
				}
				remoteNames := make(map[inventory.InternalBlockName]bool, len(rd.Blocks))
				for _, rb := range rd.Blocks {
					name := inventory.InternalBlockName(rb.Name)
					remoteNames[name] = true
					b := inv.NewBlock(d, name)
					b.Size = rb.Size
					b.NumFiles = rb.NumFiles
					b.IsOpen = rb.IsOpen
					b.LastUpdate = rb.LastOpen
					if rb.IsOpen && time.Since(time.Unix(rb.LastOpen, 0)) > openBlockAgeLimit {
						flagged = append(flagged, flaggedBlock{datasetName: rd.Name, blockName: name})
					}
				}
				for _, b := range d.Blocks() {
					if !remoteNames[b.InternalName] {
						inv.DeleteBlockNoLock(d, b.InternalName)
					}
				}
				d.RecomputeRollup()
				d.Status = inventory.DatasetValid
			}
			inv.Unlock()
			results[i] = flagged
			return nil
		}
	}

	if err := executor.Run(ctx, tasks, &executor.Progress{Total: len(tasks)}); err != nil {
		return nil, err
	}

	var all []flaggedBlock
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

type openBlockCheckResponse struct {
	StillOpen bool `json:"is_open"`
}

// secondaryOpenBlockCheck re-verifies each flagged block. A block
// confirmed open, or whose check is unreachable, is marked open and its
// dataset moves to PRODUCTION.
func secondaryOpenBlockCheck(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, flagged []flaggedBlock) error {
	tasks := make([]executor.Task, len(flagged))
	for i, fb := range flagged {
		fb := fb
		tasks[i] = func(ctx context.Context) error {
			var resp openBlockCheckResponse
			opts := map[string]string{"block": string(inventory.NewExternalBlockName(fb.datasetName, string(fb.blockName)))}
			err := client.Request(ctx, "/blockreplicasummary", opts, restclient.MethodGET, restclient.EncodingURL, &resp)
			stillOpen := err != nil || resp.StillOpen

			inv.Lock()
			defer inv.Unlock()
			d, ok := inv.DatasetNoLock(fb.datasetName)
			if !ok {
				return nil
			}
			b, ok := d.Block(fb.blockName)
			if !ok {
				return nil
			}
			if stillOpen {
				// The original system mints a fresh block identity on
				// open/closed transitions; this adapter instead flips the
				// flag in place and leaves the guid untouched.
				b.IsOpen = true
				d.Status = inventory.DatasetProduction
			}
			return nil
		}
	}
	return executor.Run(ctx, tasks, &executor.Progress{Total: len(tasks)})
}

type statusEntry struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DataType   string `json:"datatype"`
	LastUpdate int64  `json:"last_update"`
}

type statusResponse struct {
	Datasets []statusEntry `json:"data"`
}

type releaseEntry struct {
	Release string `json:"release"`
}

type releasesResponse struct {
	Releases []releaseEntry `json:"releases"`
}

// statusTypeVersionFill batches datasets needing status/data_type/version
// refresh. Datasets never returned by the remote catalog are set to
// UNKNOWN with size/num_files zeroed.
func statusTypeVersionFill(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, datasetNames []string) error {
	var needsUpdate []string
	for _, name := range datasetNames {
		d, ok := inv.Dataset(name)
		if !ok {
			continue
		}
		if d.Status != inventory.DatasetValid || d.DataType == "" {
			needsUpdate = append(needsUpdate, name)
		}
	}

	batches := chunkStrings(needsUpdate, statusBatchSize)
	tasks := make([]executor.Task, len(batches))
	for i, batch := range batches {
		batch := batch
		tasks[i] = func(ctx context.Context) error {
			var resp statusResponse
			opts := make([]restclient.Pair, 0, len(batch))
			for _, name := range batch {
				opts = append(opts, restclient.Pair{Key: "dataset", Value: name})
			}
			if err := client.Request(ctx, "/datasets", opts, restclient.MethodPOST, restclient.EncodingURL, &resp); err != nil {
				detailLog.Warn().Err(err).Msg("status/type batch failed, skipping")
				return nil
			}

			seen := make(map[string]bool, len(resp.Datasets))
			inv.Lock()
			for _, e := range resp.Datasets {
				d, ok := inv.DatasetNoLock(e.Name)
				if !ok {
					continue
				}
				d.Status = inventory.DatasetStatus(e.Status)
				d.DataType = e.DataType
				d.LastUpdate = e.LastUpdate
				seen[e.Name] = true
			}
			for _, name := range batch {
				if seen[name] {
					continue
				}
				d, ok := inv.DatasetNoLock(name)
				if !ok {
					continue
				}
				d.Status = inventory.DatasetUnknown
				d.Size = 0
				d.NumFiles = 0
			}
			inv.Unlock()
			return nil
		}
	}
	if err := executor.Run(ctx, tasks, &executor.Progress{Total: len(tasks)}); err != nil {
		return err
	}

	return fillSoftwareVersions(ctx, client, inv, needsUpdate)
}

// fillSoftwareVersions fetches release strings for datasets with no
// recorded software version, parsing the first as cycle.major.minor[_suffix].
func fillSoftwareVersions(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, datasetNames []string) error {
	for _, name := range datasetNames {
		d, ok := inv.Dataset(name)
		if !ok || d.SoftwareVersion != "" {
			continue
		}

		var resp releasesResponse
		opts := map[string]string{"dataset": name}
		if err := client.Request(ctx, "/releaseversions", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
			detailLog.Warn().Err(err).Str("dataset", name).Msg("release fetch failed, skipping")
			continue
		}
		if len(resp.Releases) == 0 {
			continue
		}

		version := parseSoftwareVersion(resp.Releases[0].Release)
		inv.Lock()
		if dd, ok := inv.DatasetNoLock(name); ok {
			dd.SoftwareVersion = version
		}
		inv.Unlock()
	}
	return nil
}

// parseSoftwareVersion parses a release string of the form
// "CMSSW_cycle_major_minor[_suffix]" into "cycle.major.minor[_suffix]".
// Unparseable strings are returned unchanged.
func parseSoftwareVersion(release string) string {
	parts := strings.Split(strings.TrimPrefix(release, "CMSSW_"), "_")
	if len(parts) < 3 {
		return release
	}
	for _, p := range parts[:3] {
		if _, err := strconv.Atoi(p); err != nil {
			return release
		}
	}
	version := strings.Join(parts[:3], ".")
	if len(parts) > 3 {
		version += "_" + strings.Join(parts[3:], "_")
	}
	return version
}

func chunkStrings(in []string, size int) [][]string {
	if len(in) == 0 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}
