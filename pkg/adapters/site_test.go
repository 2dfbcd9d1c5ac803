package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*restclient.Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	client, err := restclient.New(restclient.Config{BaseURL: ts.URL})
	require.NoError(t, err)
	return client, ts
}

func TestGetSiteListUpsertsSites(t *testing.T) {
	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(nodesResponse{Nodes: []siteEntry{
			{Name: "T2_US_Example", Host: "se.example.org", StorageType: "disk", Backend: "dCache"},
		}})
	})
	defer ts.Close()

	inv := inventory.New()
	err := GetSiteList(context.Background(), client, inv, nil)
	require.NoError(t, err)

	s, ok := inv.Site("T2_US_Example")
	require.True(t, ok)
	assert.Equal(t, "se.example.org", s.Host)
	assert.Equal(t, inventory.StorageDisk, s.StorageType)
}

func TestSetSiteStatusAppliesMostRecentFeedEntry(t *testing.T) {
	inv := inventory.New()
	inv.NewSiteLocking("T2_US_Example")

	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		columnID := r.URL.Query().Get("columnid")
		switch columnID {
		case "waitroom":
			_ = json.NewEncoder(w).Encode(plotDataResponse{Rows: []statusFeedEntry{
				{SiteName: "T2_US_Example", AgeStr: "10"},
				{SiteName: "T2_US_Example", AgeStr: "500"},
			}})
		default:
			_ = json.NewEncoder(w).Encode(plotDataResponse{})
		}
	})
	defer ts.Close()

	err := SetSiteStatus(context.Background(), client, inv, "waitroom", "morgue")
	require.NoError(t, err)

	s, ok := inv.Site("T2_US_Example")
	require.True(t, ok)
	assert.Equal(t, inventory.SiteWaitroom, s.Status)
}

func TestDecodeStorageType(t *testing.T) {
	assert.Equal(t, inventory.StorageDisk, decodeStorageType("disk"))
	assert.Equal(t, inventory.StorageMSS, decodeStorageType("MSS"))
	assert.Equal(t, inventory.StorageBuffer, decodeStorageType("buffer"))
	assert.Equal(t, inventory.StorageUnknown, decodeStorageType("?"))
}
