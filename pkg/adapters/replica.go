package adapters

import (
	"context"
	"sync"

	"github.com/cmsdynamo/dynamo/pkg/executor"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var replicaLog = log.WithComponent("adapters.replica")

const chunkAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// replicaRow is one row of the remote "blockreplicas" resource: a single
// block replica as seen by one site.
type replicaRow struct {
	Dataset        string  `json:"dataset"`
	Block          string  `json:"block"` // guid only, scoped to Dataset
	Site           string  `json:"node"`
	Group          string  `json:"group"`
	IsCustodial    string  `json:"is_custodial"`    // "y"/"n"
	RemoteComplete string  `json:"complete"`        // "y"/"n"/"partial"
	BytesReported  uint64  `json:"bytes"`
	TimeCreate     float64 `json:"time_create"` // unix seconds
}

type replicasResponse struct {
	Rows []replicaRow `json:"phedex"`
}

// quotaChunkWidth implements the hot-path chunking rule (§4.3.3): the
// alphabet of 62 characters is split into ceil(62/chunk) ranges, where
// chunk = max(62/floor(totalQuotaTB/100), 1).
func quotaChunkWidth(totalQuotaTB float64) int {
	buckets := int(totalQuotaTB / 100)
	if buckets <= 0 {
		return len(chunkAlphabet)
	}
	width := len(chunkAlphabet) / buckets
	if width < 1 {
		width = 1
	}
	return width
}

// prefixRanges splits chunkAlphabet into consecutive ranges of width
// characters each, returned as "a-c"-style strings (a single-character
// range is returned bare).
func prefixRanges(width int) []string {
	if width >= len(chunkAlphabet) {
		return []string{chunkAlphabet}
	}
	var ranges []string
	for i := 0; i < len(chunkAlphabet); i += width {
		end := i + width
		if end > len(chunkAlphabet) {
			end = len(chunkAlphabet)
		}
		if end-i == 1 {
			ranges = append(ranges, string(chunkAlphabet[i]))
		} else {
			ranges = append(ranges, string(chunkAlphabet[i])+"-"+string(chunkAlphabet[end-1]))
		}
	}
	return ranges
}

func siteTotalQuotaTB(s *inventory.Site) float64 {
	var totalBytes int64
	for _, sp := range s.Partitions() {
		totalBytes += sp.QuotaBytes
	}
	return float64(totalBytes) / float64(int64(1)<<40)
}

// replicaChunk is one unit of work handed to the executor: a site name plus
// an optional dataset-name prefix range (empty means unrestricted).
type replicaChunk struct {
	site   string
	prefix string
}

func planChunks(inv *inventory.Inventory, siteFilter, datasetFilter []string) []replicaChunk {
	sites := inv.Sites()
	if len(siteFilter) > 0 {
		allowed := make(map[string]bool, len(siteFilter))
		for _, n := range siteFilter {
			allowed[n] = true
		}
		filtered := sites[:0:0]
		for _, s := range sites {
			if allowed[s.Name] {
				filtered = append(filtered, s)
			}
		}
		sites = filtered
	}

	var chunks []replicaChunk
	for _, s := range sites {
		if len(datasetFilter) > 0 {
			// A restricted dataset filter issues a single query per site.
			chunks = append(chunks, replicaChunk{site: s.Name})
			continue
		}
		width := quotaChunkWidth(siteTotalQuotaTB(s))
		for _, prefix := range prefixRanges(width) {
			chunks = append(chunks, replicaChunk{site: s.Name, prefix: prefix})
		}
	}
	return chunks
}

// stagedReplica is the thread-local Pass 2 product: enough information to
// splice a block replica into the graph under lock in Pass 3, without
// holding the lock while decoding and deriving fields.
type stagedReplica struct {
	dataset     *inventory.Dataset
	block       *inventory.Block
	site        *inventory.Site
	group       *inventory.Group
	isCustodial bool
	isComplete  bool
	size        uint64
	lastUpdate  int64
}

// MakeReplicaLinks rebuilds every DatasetReplica and BlockReplica from the
// remote replica catalog (§4.3.3, the hot path). siteFilter/groupFilter/
// datasetFilter restrict scope; empty means unrestricted.
func MakeReplicaLinks(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, siteFilter, groupFilter, datasetFilter []string) error {
	chunks := planChunks(inv, siteFilter, datasetFilter)

	watch := datasetsWithReplicas(inv, datasetFilter)
	var watchMu sync.Mutex

	tasks := make([]executor.Task, len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		tasks[i] = func(ctx context.Context) error {
			rows, err := fetchReplicaChunk(ctx, client, chunk, groupFilter)
			if err != nil {
				replicaLog.Warn().Err(err).Str("site", chunk.site).Str("prefix", chunk.prefix).
					Msg("replica chunk fetch failed, skipping")
				return nil
			}

			// Pass 1 (locked): ensure every dataset and block mentioned
			// exists, and build a per-chunk index for Pass 2.
			type blockKey struct {
				dataset string
				block   string
			}
			datasetIndex := make(map[string]*inventory.Dataset)
			blockIndex := make(map[blockKey]*inventory.Block)

			inv.Lock()
			for _, row := range rows {
				d, ok := datasetIndex[row.Dataset]
				if !ok {
					d = inv.NewDataset(row.Dataset)
					datasetIndex[row.Dataset] = d
				}
				bk := blockKey{row.Dataset, row.Block}
				if _, ok := blockIndex[bk]; !ok {
					blockIndex[bk] = inv.NewBlock(d, inventory.InternalBlockName(row.Block))
				}
			}
			site, ok := inv.SiteNoLock(chunk.site)
			inv.Unlock()
			if !ok {
				return nil
			}

			// Pass 2 (unlocked): decode and derive, into a thread-local
			// buffer.
			staged := make([]stagedReplica, 0, len(rows))
			seenDatasets := make(map[string]bool)
			for _, row := range rows {
				block := blockIndex[blockKey{row.Dataset, row.Block}]
				dataset := datasetIndex[row.Dataset]

				var group *inventory.Group
				if row.Group != "" {
					g, ok := inv.Group(row.Group)
					if !ok {
						err := &inventory.MissingReferent{Kind: "group", Name: row.Group}
						replicaLog.Warn().Err(err).Str("dataset", row.Dataset).Msg("block replica group unknown locally")
						group = nil
					} else {
						group = g
					}
				}

				isComplete := row.RemoteComplete == "y" || row.BytesReported < block.Size
				staged = append(staged, stagedReplica{
					dataset:     dataset,
					block:       block,
					site:        site,
					group:       group,
					isCustodial: row.IsCustodial == "y",
					isComplete:  isComplete,
					size:        row.BytesReported,
					lastUpdate:  int64(row.TimeCreate),
				})
				seenDatasets[row.Dataset] = true
			}

			// Pass 3 (locked): splice into the graph.
			inv.Lock()
			for _, st := range staged {
				br := inventory.NewBlockReplica(st.block, st.site)
				br.Group = st.group
				br.IsCustodial = st.isCustodial
				br.IsComplete = st.isComplete
				br.Size = st.size
				br.LastUpdate = st.lastUpdate
				inv.AddBlockReplica(br)
			}
			inv.Unlock()

			watchMu.Lock()
			for name := range seenDatasets {
				delete(watch, name)
			}
			watchMu.Unlock()
			return nil
		}
	}

	if err := executor.Run(ctx, tasks, &executor.Progress{Total: len(tasks)}); err != nil {
		return err
	}

	inv.Lock()
	for name := range watch {
		inv.DeleteDataset(name)
	}
	for _, s := range inv.SitesNoLock() {
		s.RecomputeAfterMerge()
	}
	inv.Unlock()

	return nil
}

// datasetsWithReplicas seeds the "datasets without replicas" watch set: it
// starts as every currently-known dataset (within datasetFilter scope, if
// restricted) that currently holds at least one replica. A dataset left in
// the set after every chunk has reported in has lost all of its replicas
// this cycle and is removed from the graph entirely.
func datasetsWithReplicas(inv *inventory.Inventory, datasetFilter []string) map[string]bool {
	allowed := map[string]bool(nil)
	if len(datasetFilter) > 0 {
		allowed = make(map[string]bool, len(datasetFilter))
		for _, n := range datasetFilter {
			allowed[n] = true
		}
	}

	out := make(map[string]bool)
	for _, d := range inv.Datasets() {
		if allowed != nil && !allowed[d.Name] {
			continue
		}
		if len(d.Replicas()) > 0 {
			out[d.Name] = true
		}
	}
	return out
}

func fetchReplicaChunk(ctx context.Context, client *restclient.Client, chunk replicaChunk, groupFilter []string) ([]replicaRow, error) {
	opts := []restclient.Pair{{Key: "node", Value: chunk.site}}
	if chunk.prefix != "" {
		opts = append(opts, restclient.Pair{Key: "dataset_prefix", Value: chunk.prefix})
	}
	for _, g := range groupFilter {
		opts = append(opts, restclient.Pair{Key: "group", Value: g})
	}

	var resp replicasResponse
	if err := client.Request(ctx, "/blockreplicas", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}
