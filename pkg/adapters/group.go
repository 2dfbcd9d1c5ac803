package adapters

import (
	"context"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

// groupEntry is one row of the data-catalog "groups" resource.
type groupEntry struct {
	Name   string `json:"name"`
	Olevel string `json:"usergroup"`
}

type groupsResponse struct {
	Groups []groupEntry `json:"groups"`
}

// GetGroupList upserts Group entries from the data catalog's "groups"
// resource into inv. Filter restricts by group name; empty means no
// restriction.
func GetGroupList(ctx context.Context, client *restclient.Client, inv *inventory.Inventory, filter []string) error {
	var resp groupsResponse
	opts := make([]restclient.Pair, 0, len(filter))
	for _, name := range filter {
		opts = append(opts, restclient.Pair{Key: "group", Value: name})
	}
	if err := client.Request(ctx, "/groups", opts, restclient.MethodGET, restclient.EncodingURL, &resp); err != nil {
		return err
	}

	inv.Lock()
	defer inv.Unlock()
	for _, e := range resp.Groups {
		inv.NewGroup(e.Name, e.Olevel)
	}
	return nil
}
