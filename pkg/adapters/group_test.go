package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

func TestGetGroupListUpsertsGroups(t *testing.T) {
	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(groupsResponse{Groups: []groupEntry{
			{Name: "AnalysisOps", Olevel: "DATASET"},
		}})
	})
	defer ts.Close()

	inv := inventory.New()
	err := GetGroupList(context.Background(), client, inv, nil)
	require.NoError(t, err)

	g, ok := inv.Group("AnalysisOps")
	require.True(t, ok)
	assert.Equal(t, "DATASET", g.Olevel)
}
