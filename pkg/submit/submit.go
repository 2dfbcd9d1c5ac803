// Package submit is the copy/deletion submission interface (§4.7): it
// turns a policy decision into a subscribe/delete XML payload, batches
// requests by site up to the subscription chunk size, and tracks
// operation status. Read-only and test modes never perform the remote
// side effect.
package submit

import (
	"context"
	"math/rand"
	"sort"
	"strconv"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var submitLog = log.WithComponent("submit")

// Mode selects how a Submitter handles the remote side effect.
type Mode int

const (
	// ModeLive submits to the remote subscription/deletion service.
	ModeLive Mode = iota
	// ModeReadOnly logs the payload that would have been sent and
	// returns without any remote effect.
	ModeReadOnly
	// ModeTest returns synthetic negative op ids without contacting the
	// remote service at all, for exercising callers in isolation.
	ModeTest
)

const defaultChunkSizeBytes = 40 * 1 << 40 // 40 TB

// Submitter issues copy/deletion requests against the remote
// subscribe/delete resources and tracks their status.
type Submitter struct {
	client         *restclient.Client
	mode           Mode
	chunkSizeBytes uint64

	nextTestOpID int64
}

// Config configures a Submitter.
type Config struct {
	Mode           Mode
	ChunkSizeBytes uint64 // default 40 TB
}

// New builds a Submitter bound to client.
func New(client *restclient.Client, cfg Config) *Submitter {
	chunk := cfg.ChunkSizeBytes
	if chunk == 0 {
		chunk = defaultChunkSizeBytes
	}
	return &Submitter{client: client, mode: cfg.Mode, chunkSizeBytes: chunk}
}

// OpResult is one submission's outcome: whether the remote service
// approved it, and the replicas the call actually covered.
type OpResult struct {
	Approved bool
	Replicas []*inventory.DatasetReplica
}

// subscribeResponse is the JSON shape the subscribe/delete resources
// return for one request.
type subscribeResponse struct {
	RequestID int64 `json:"id"`
}

// ScheduleCopy requests a single replica be copied. origin is not used:
// the request names no source site. comments is logged in read-only mode;
// a live request carries only the XML payload.
func (s *Submitter) ScheduleCopy(ctx context.Context, dr *inventory.DatasetReplica, origin *inventory.Site, comments string) (int64, error) {
	results, err := s.ScheduleCopies(ctx, []*inventory.DatasetReplica{dr}, comments)
	if err != nil {
		return 0, err
	}
	for opID, res := range results {
		if len(res.Replicas) > 0 {
			return opID, nil
		}
	}
	return 0, nil
}

// ScheduleCopies batches replicas by destination site, chunking each
// site's payload at s.chunkSizeBytes of physical size per request (§4.7),
// and POSTs each chunk to the "subscribe" resource.
func (s *Submitter) ScheduleCopies(ctx context.Context, replicas []*inventory.DatasetReplica, comments string) (map[int64]OpResult, error) {
	return s.submit(ctx, "subscribe", replicas, comments)
}

// ScheduleDeletion requests a single replica be deleted.
func (s *Submitter) ScheduleDeletion(ctx context.Context, dr *inventory.DatasetReplica, groupFilter []string, comments string) (int64, error) {
	results, err := s.ScheduleDeletions(ctx, []*inventory.DatasetReplica{dr}, groupFilter, comments)
	if err != nil {
		return 0, err
	}
	for opID, res := range results {
		if len(res.Replicas) > 0 {
			return opID, nil
		}
	}
	return 0, nil
}

// ScheduleDeletions batches replicas by site exactly like ScheduleCopies
// and POSTs to "delete". When groupFilter is non-empty, a replica is
// dropped unless at least one of its block replicas is owned by a group in
// groupFilter; a kept replica's payload still lists all of its block
// replicas. Every accepted deletion is
// auto-approved with a follow-up call, matching the remote service's
// two-step delete/approve protocol.
func (s *Submitter) ScheduleDeletions(ctx context.Context, replicas []*inventory.DatasetReplica, groupFilter []string, comments string) (map[int64]OpResult, error) {
	filtered := replicas
	if len(groupFilter) > 0 {
		filtered = filterByGroup(replicas, groupFilter)
	}
	results, err := s.submit(ctx, "delete", filtered, comments)
	if err != nil {
		return nil, err
	}
	if s.mode == ModeLive {
		for opID := range results {
			if err := s.approve(ctx, opID); err != nil {
				submitLog.Warn().Int64("op_id", opID).Err(err).Msg("deletion auto-approval failed")
			}
		}
	}
	return results, nil
}

func filterByGroup(replicas []*inventory.DatasetReplica, groupFilter []string) []*inventory.DatasetReplica {
	allowed := make(map[string]bool, len(groupFilter))
	for _, g := range groupFilter {
		allowed[g] = true
	}
	var out []*inventory.DatasetReplica
	for _, dr := range replicas {
		var kept []*inventory.BlockReplica
		for _, br := range dr.BlockReplicas() {
			if br.Group != nil && allowed[br.Group.Name] {
				kept = append(kept, br)
			}
		}
		if len(kept) > 0 {
			out = append(out, dr)
		}
	}
	return out
}

// submit groups replicas by site, chunks each site's group by physical
// size up to s.chunkSizeBytes, and issues one request per chunk.
func (s *Submitter) submit(ctx context.Context, resource string, replicas []*inventory.DatasetReplica, comments string) (map[int64]OpResult, error) {
	bySite := make(map[string][]*inventory.DatasetReplica)
	for _, dr := range replicas {
		bySite[dr.Site.Name] = append(bySite[dr.Site.Name], dr)
	}

	results := make(map[int64]OpResult)
	var siteNames []string
	for name := range bySite {
		siteNames = append(siteNames, name)
	}
	sort.Strings(siteNames)

	for _, site := range siteNames {
		for _, chunk := range chunkBySize(bySite[site], s.chunkSizeBytes) {
			opID, err := s.issueChunk(ctx, resource, chunk, comments)
			if err != nil {
				return results, err
			}
			results[opID] = OpResult{Approved: s.mode == ModeLive, Replicas: chunk}
		}
	}
	return results, nil
}

// chunkBySize splits replicas into consecutive groups whose summed
// PhysicalSize does not exceed limit, except that a single replica larger
// than limit gets its own chunk.
func chunkBySize(replicas []*inventory.DatasetReplica, limit uint64) [][]*inventory.DatasetReplica {
	var chunks [][]*inventory.DatasetReplica
	var current []*inventory.DatasetReplica
	var currentSize uint64

	for _, dr := range replicas {
		size := dr.PhysicalSize()
		if len(current) > 0 && currentSize+size > limit {
			chunks = append(chunks, current)
			current = nil
			currentSize = 0
		}
		current = append(current, dr)
		currentSize += size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func (s *Submitter) issueChunk(ctx context.Context, resource string, chunk []*inventory.DatasetReplica, comments string) (int64, error) {
	switch s.mode {
	case ModeTest:
		s.nextTestOpID--
		return s.nextTestOpID, nil
	case ModeReadOnly:
		for _, dr := range chunk {
			submitLog.Info().
				Str("resource", resource).
				Str("site", dr.Site.Name).
				Str("dataset", dr.Dataset.Name).
				Str("comments", comments).
				Msg("read-only mode: payload not submitted")
		}
		return 0, nil
	}

	var lastID int64
	for _, dr := range chunk {
		payload := buildPayload(dr)
		var resp subscribeResponse
		if err := s.client.RequestXML(ctx, resource, payload, &resp); err != nil {
			return 0, err
		}
		lastID = resp.RequestID
	}
	return lastID, nil
}

func (s *Submitter) approve(ctx context.Context, opID int64) error {
	opts := restclient.Pair{Key: "request", Value: strconv.FormatInt(opID, 10)}
	return s.client.Request(ctx, "updaterequest", []restclient.Pair{opts, {Key: "decision", Value: "approve"}}, restclient.MethodPOST, restclient.EncodingURL, nil)
}

// StatusKey identifies one (site, dataset) subscription being tracked.
type StatusKey struct {
	Site    string
	Dataset string
}

// Status is one subscription's progress as last reported by the remote
// service.
type Status struct {
	TotalBytes uint64
	DoneBytes  uint64
	LastUpdate int64 // unix seconds
}

// transferRequestEntry is the one matching "transferrequests" row for a
// request id: the destination site and the dataset names it covers
// (flattening the original's nested destinations.node[0].name and
// data.dbs.dataset[].name).
type transferRequestEntry struct {
	SiteName     string   `json:"site"`
	DatasetNames []string `json:"datasets"`
}

type transferRequestsResponse struct {
	Requests []transferRequestEntry `json:"phedex"`
}

type subscriptionEntry struct {
	Dataset    string `json:"name"`
	TotalBytes uint64 `json:"bytes"`
	DoneBytes  uint64 `json:"node_bytes"`
	LastUpdate int64  `json:"time_update"`
}

type subscriptionsResponse struct {
	Subscriptions []subscriptionEntry `json:"phedex"`
}

// CopyStatus looks up a previously scheduled copy by its operation id and
// reports each destination dataset's subscription progress. It mirrors the
// original's two-step copy_status lookup: resolve the request id to its
// destination site and dataset list via "transferrequests", then fetch
// each dataset's subscription bytes at that site via "subscriptions".
func (s *Submitter) CopyStatus(ctx context.Context, opID int64) (map[StatusKey]Status, error) {
	var reqResp transferRequestsResponse
	reqOpts := []restclient.Pair{{Key: "request", Value: strconv.FormatInt(opID, 10)}}
	if err := s.client.Request(ctx, "transferrequests", reqOpts, restclient.MethodGET, restclient.EncodingURL, &reqResp); err != nil {
		return nil, err
	}
	if len(reqResp.Requests) == 0 {
		return map[StatusKey]Status{}, nil
	}
	req := reqResp.Requests[0]

	subOpts := make([]restclient.Pair, 0, len(req.DatasetNames)+1)
	subOpts = append(subOpts, restclient.Pair{Key: "node", Value: req.SiteName})
	for _, name := range req.DatasetNames {
		subOpts = append(subOpts, restclient.Pair{Key: "dataset", Value: name})
	}

	var subResp subscriptionsResponse
	if err := s.client.Request(ctx, "subscriptions", subOpts, restclient.MethodGET, restclient.EncodingURL, &subResp); err != nil {
		return nil, err
	}

	out := make(map[StatusKey]Status, len(subResp.Subscriptions))
	for _, sub := range subResp.Subscriptions {
		out[StatusKey{Site: req.SiteName, Dataset: sub.Dataset}] = Status{
			TotalBytes: sub.TotalBytes,
			DoneBytes:  sub.DoneBytes,
			LastUpdate: sub.LastUpdate,
		}
	}
	return out, nil
}

// deleteRequestEntry is the one matching "deleterequests" row for a
// request id: the site the deletion runs at, when it was decided, and the
// datasets it covers.
type deleteRequestEntry struct {
	SiteName   string `json:"site"`
	LastUpdate int64  `json:"time_decided"`
	Datasets   []struct {
		Name  string `json:"name"`
		Bytes uint64 `json:"bytes"`
	} `json:"datasets"`
}

type deleteRequestsResponse struct {
	Requests []deleteRequestEntry `json:"phedex"`
}

// DeletionStatus looks up a previously scheduled deletion by its operation
// id and reports each dataset's deletion progress, mirroring the
// original's deletion_status. A deletion completes atomically once
// approved, so DoneBytes always equals TotalBytes.
func (s *Submitter) DeletionStatus(ctx context.Context, opID int64) (map[StatusKey]Status, error) {
	var reqResp deleteRequestsResponse
	reqOpts := []restclient.Pair{{Key: "request", Value: strconv.FormatInt(opID, 10)}}
	if err := s.client.Request(ctx, "deleterequests", reqOpts, restclient.MethodGET, restclient.EncodingURL, &reqResp); err != nil {
		return nil, err
	}
	if len(reqResp.Requests) == 0 {
		return map[StatusKey]Status{}, nil
	}
	req := reqResp.Requests[0]

	out := make(map[StatusKey]Status, len(req.Datasets))
	for _, ds := range req.Datasets {
		out[StatusKey{Site: req.SiteName, Dataset: ds.Name}] = Status{
			TotalBytes: ds.Bytes,
			DoneBytes:  ds.Bytes,
			LastUpdate: req.LastUpdate,
		}
	}
	return out, nil
}

// shuffleSites matches the spec's "emit the (dataset, site) list
// randomized globally to avoid site bias" requirement for callers that
// build a request list before handing it to Schedule*.
func shuffleSites(sites []*inventory.Site) {
	rand.Shuffle(len(sites), func(i, j int) { sites[i], sites[j] = sites[j], sites[i] })
}
