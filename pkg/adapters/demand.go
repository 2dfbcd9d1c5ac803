package adapters

import (
	"context"
	"strconv"

	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var demandLog = log.WithComponent("adapters.demand")

// LockSourceType names the shape a configured lock source's payload
// normalizes from (§4.5).
type LockSourceType string

const (
	LockSourceListOfDatasets    LockSourceType = "LIST_OF_DATASETS"
	LockSourceSiteToDatasets    LockSourceType = "SITE_TO_DATASETS"
	LockSourceCMSWebListOfDatasets LockSourceType = "CMSWEB_LIST_OF_DATASETS"
)

// LockEntry is one normalized (dataset[, site]) pair from a lock source.
type LockEntry struct {
	Dataset string
	Site    string // empty when the source is not site-scoped
}

type listOfDatasetsResponse struct {
	Datasets []string `json:"datasets"`
}

type siteToDatasetsResponse struct {
	Sites map[string][]string `json:"locked_datasets"`
}

// FetchLocks queries a single lock source and returns its normalized
// entries. Each configured source is typed so the adapter knows how to
// decode and normalize its payload.
func FetchLocks(ctx context.Context, client *restclient.Client, resource string, sourceType LockSourceType) ([]LockEntry, error) {
	switch sourceType {
	case LockSourceListOfDatasets, LockSourceCMSWebListOfDatasets:
		var resp listOfDatasetsResponse
		if err := client.Request(ctx, resource, nil, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
			return nil, err
		}
		out := make([]LockEntry, 0, len(resp.Datasets))
		for _, name := range resp.Datasets {
			out = append(out, LockEntry{Dataset: name})
		}
		return out, nil
	case LockSourceSiteToDatasets:
		var resp siteToDatasetsResponse
		if err := client.Request(ctx, resource, nil, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
			return nil, err
		}
		var out []LockEntry
		for site, names := range resp.Sites {
			for _, name := range names {
				out = append(out, LockEntry{Dataset: name, Site: site})
			}
		}
		return out, nil
	default:
		demandLog.Warn().Str("type", string(sourceType)).Msg("unknown lock source type, skipping")
		return nil, nil
	}
}

// AccessRecord is a single day-bin access count for a dataset, as reported
// by the access-history source.
type AccessRecord struct {
	Dataset string
	Day     int64 // unix day (epoch seconds truncated to midnight UTC)
	Count   int
}

type accessHistoryEntry struct {
	Dataset string `json:"name"`
	Day     int64  `json:"day"`
	Count   int    `json:"naccess"`
}

type accessHistoryResponse struct {
	Accesses []accessHistoryEntry `json:"accesses"`
}

// FetchAccessHistory queries the access-history source for accesses
// between since and now, inclusive, in per-day bins.
func FetchAccessHistory(ctx context.Context, client *restclient.Client, sinceUnixDay int64) ([]AccessRecord, error) {
	opts := map[string]string{"since": strconv.FormatInt(sinceUnixDay, 10)}
	var resp accessHistoryResponse
	if err := client.Request(ctx, "/popularity", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
		return nil, err
	}
	out := make([]AccessRecord, 0, len(resp.Accesses))
	for _, e := range resp.Accesses {
		out = append(out, AccessRecord{Dataset: e.Dataset, Day: e.Day, Count: e.Count})
	}
	return out, nil
}

// PendingRequest is one dataset awaiting creation in the global request
// queue.
type PendingRequest struct {
	Dataset string
}

type pendingRequestEntry struct {
	Dataset string `json:"dataset"`
}

type pendingRequestsResponse struct {
	Requests []pendingRequestEntry `json:"requests"`
}

// FetchPendingRequests queries the global pending-request queue.
func FetchPendingRequests(ctx context.Context, client *restclient.Client) ([]PendingRequest, error) {
	var resp pendingRequestsResponse
	if err := client.Request(ctx, "/requestlist", nil, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
		return nil, err
	}
	out := make([]PendingRequest, 0, len(resp.Requests))
	for _, e := range resp.Requests {
		out = append(out, PendingRequest{Dataset: e.Dataset})
	}
	return out, nil
}
