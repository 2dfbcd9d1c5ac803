package adapters

import (
	"context"

	"github.com/cmsdynamo/dynamo/pkg/executor"
	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var tapeLog = log.WithComponent("adapters.tape")

const tapeCheckChunkSize = 1000

type tapeBlockEntry struct {
	Dataset string `json:"dataset"`
	Block   string `json:"block"`
}

type tapeSummaryResponse struct {
	Blocks []tapeBlockEntry `json:"blockreplicas"`
}

// CheckTapePresence runs the tape-presence adapter (§4.3.5): every dataset
// not already marked on_tape (and not IGNORED) is checked, in chunks, for
// full custodial-complete coverage at tape sites.
func CheckTapePresence(ctx context.Context, client *restclient.Client, inv *inventory.Inventory) error {
	var candidates []*inventory.Dataset
	for _, d := range inv.Datasets() {
		if !d.OnTape && d.Status != inventory.DatasetIgnored {
			candidates = append(candidates, d)
		}
	}

	batches := chunkDatasets(candidates, tapeCheckChunkSize)
	tasks := make([]executor.Task, len(batches))
	for i, batch := range batches {
		batch := batch
		tasks[i] = func(ctx context.Context) error {
			opts := make([]restclient.Pair, 0, len(batch)+2)
			opts = append(opts, restclient.Pair{Key: "custodial", Value: "y"}, restclient.Pair{Key: "complete", Value: "y"})
			for _, d := range batch {
				opts = append(opts, restclient.Pair{Key: "dataset", Value: d.Name})
			}

			var resp tapeSummaryResponse
			if err := client.Request(ctx, "/blockreplicasummary", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
				tapeLog.Warn().Err(err).Msg("tape presence batch failed, skipping")
				return nil
			}

			found := make(map[string]map[string]bool, len(batch))
			for _, row := range resp.Blocks {
				m, ok := found[row.Dataset]
				if !ok {
					m = make(map[string]bool)
					found[row.Dataset] = m
				}
				m[row.Block] = true
			}

			inv.Lock()
			defer inv.Unlock()
			for _, d := range batch {
				m := found[d.Name]
				onTape := true
				for _, b := range d.Blocks() {
					if m == nil || !m[string(b.InternalName)] {
						onTape = false
						break
					}
				}
				d.OnTape = onTape
			}
			return nil
		}
	}

	return executor.Run(ctx, tasks, &executor.Progress{Total: len(tasks)})
}

func chunkDatasets(in []*inventory.Dataset, size int) [][]*inventory.Dataset {
	if len(in) == 0 {
		return nil
	}
	var out [][]*inventory.Dataset
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}
