package adapters

import (
	"context"
	"strconv"
	"time"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

var siteLog = log.WithComponent("adapters.site")

// siteEntry is the shape of one row of the data-catalog "nodes" resource.
type siteEntry struct {
	Name        string `json:"name"`
	Host        string `json:"se"`
	StorageType string `json:"kind"` // "disk", "mss", "buffer"
	Backend     string `json:"technology"`
}

type nodesResponse struct {
	Nodes []siteEntry `json:"nodes"`
}

// GetSiteList upserts Site entries from the data catalog's "nodes"
// resource into inv. Filter restricts by site name; empty means no
// restriction.
func GetSiteList(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, filter []string) error {
	var resp nodesResponse
	opts := make([]restclient.Pair, 0, len(filter))
	for _, name := range filter {
		opts = append(opts, restclient.Pair{Key: "node", Value: name})
	}
	if err := client.Request(ctx, "/nodes", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
		return err
	}

	inv.Lock()
	defer inv.Unlock()
	for _, e := range resp.Nodes {
		site := inv.NewSite(e.Name)
		site.Host = e.Host
		site.Backend = e.Backend
		site.StorageType = decodeStorageType(e.StorageType)
	}
	return nil
}

func decodeStorageType(remote string) inventory.StorageType {
	switch remote {
	case "disk":
		return inventory.StorageDisk
	case "mss", "MSS":
		return inventory.StorageMSS
	case "buffer":
		return inventory.StorageBuffer
	default:
		return inventory.StorageUnknown
	}
}

// statusFeedEntry is one row of a getplotdata-style status feed: a site
// name, a relative age (seconds ago), and the status code that feed
// represents.
type statusFeedEntry struct {
	SiteName string `json:"sitename"`
	AgeStr   string `json:"time"` // seconds-ago, as a string
}

type plotDataResponse struct {
	Rows []statusFeedEntry `json:"data"`
}

// SetSiteStatus marks every known site READY, then applies the two status
// feeds (WAITROOM, MORGUE), each keeping only the most recent (lowest
// age) update per site. A feed that fails to parse is logged and skipped
// entirely; it never partially applies.
func SetSiteStatus(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, waitroomColumnID, morgueColumnID string) error {
	inv.Lock()
	for _, s := range inv.SitesNoLock() {
		s.Status = inventory.SiteReady
	}
	inv.Unlock()

	applyFeed := func(columnID string, status inventory.SiteStatus) {
		var resp plotDataResponse
		opts := map[string]string{"columnid": columnID}
		if err := client.Request(ctx, "/getplotdata", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
			siteLog.Warn().Err(err).Str("status", string(status)).Msg("status feed request failed")
			return
		}

		mostRecent := make(map[string]time.Duration)
		for _, row := range resp.Rows {
			secs, err := strconv.ParseFloat(row.AgeStr, 64)
			if err != nil {
				siteLog.Warn().Err(err).Str("site", row.SiteName).Str("status", string(status)).Msg("failed to parse status feed age, skipping feed")
				return
			}
			age := time.Duration(secs * float64(time.Second))
			if prev, ok := mostRecent[row.SiteName]; !ok || age < prev {
				mostRecent[row.SiteName] = age
			}
		}

		inv.Lock()
		defer inv.Unlock()
		for name := range mostRecent {
			if site, ok := inv.SiteNoLock(name); ok {
				site.Status = status
			}
		}
	}

	applyFeed(waitroomColumnID, inventory.SiteWaitroom)
	applyFeed(morgueColumnID, inventory.SiteMorgue)
	return nil
}
