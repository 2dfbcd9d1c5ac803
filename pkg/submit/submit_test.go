package submit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/restclient"
)

func buildTestReplica(t *testing.T, siteName string, fileSize uint64) *inventory.DatasetReplica {
	t.Helper()
	inv := inventory.New()
	d := inv.NewDatasetLocking("/Primary/Processed/TIER")
	d.IsOpen = true
	s := inv.NewSiteLocking(siteName)

	inv.Lock()
	b := inv.NewBlock(d, "guid-1")
	b.IsOpen = false
	inv.NewFile(b, "/store/file1.root", fileSize)
	inv.NewFile(b, "/store/file2.root", fileSize)

	br := inventory.NewBlockReplica(b, s)
	br.IsComplete = true
	inv.AddBlockReplica(br)
	dr, _ := d.Replica(siteName)
	inv.Unlock()

	return dr
}

func TestBuildPayloadRoundTrip(t *testing.T) {
	dr := buildTestReplica(t, "T2_US_Example", 1024)

	payload := buildPayload(dr)
	parsed, err := ParsePayload(payload)
	require.NoError(t, err)

	assert.Equal(t, dr.Dataset.Name, parsed.Name)
	assert.Equal(t, dr.Dataset.IsOpen, parsed.IsOpen)
	require.Len(t, parsed.Blocks, 1)

	block := parsed.Blocks[0]
	wantBlock, _ := dr.Dataset.Block("guid-1")
	assert.Equal(t, string(wantBlock.ExternalName()), block.Name)
	assert.Equal(t, wantBlock.IsOpen, block.IsOpen)
	require.Len(t, block.Files, 2)
	for _, f := range block.Files {
		assert.EqualValues(t, 1024, f.Bytes)
	}
}

func TestScheduleCopiesTestModeReturnsSyntheticNegativeIDs(t *testing.T) {
	dr := buildTestReplica(t, "T2_US_Example", 1024)

	s := New(nil, Config{Mode: ModeTest})
	results, err := s.ScheduleCopies(context.Background(), []*inventory.DatasetReplica{dr}, "test copy")
	require.NoError(t, err)
	require.Len(t, results, 1)
	for opID := range results {
		assert.Less(t, opID, int64(0))
	}
}

func TestScheduleCopiesReadOnlyModeDoesNotSubmit(t *testing.T) {
	dr := buildTestReplica(t, "T2_US_Example", 1024)

	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("{}"))
	}))
	defer ts.Close()
	client, err := restclient.New(restclient.Config{BaseURL: ts.URL})
	require.NoError(t, err)

	s := New(client, Config{Mode: ModeReadOnly})
	results, err := s.ScheduleCopies(context.Background(), []*inventory.DatasetReplica{dr}, "dry run")
	require.NoError(t, err)
	assert.False(t, called)
	assert.Len(t, results, 1)
}

func TestChunkBySizeSplitsAtLimit(t *testing.T) {
	dr1 := buildTestReplica(t, "T1_Site", 30<<30) // 30 GiB per file * 2 files = 60 GiB
	dr2 := buildTestReplica(t, "T1_Site", 30<<30)
	dr3 := buildTestReplica(t, "T1_Site", 30<<30)

	chunks := chunkBySize([]*inventory.DatasetReplica{dr1, dr2, dr3}, 100<<30)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1)
	assert.Len(t, chunks[1], 1)
}

func TestScheduleDeletionsFiltersByGroup(t *testing.T) {
	inv := inventory.New()
	d := inv.NewDatasetLocking("/Primary/Processed/TIER")
	s := inv.NewSiteLocking("T2_US_Example")
	gKeep := inv.NewGroupLocking("AnalysisOps", "")
	gDrop := inv.NewGroupLocking("DataOps", "")

	inv.Lock()
	b1 := inv.NewBlock(d, "guid-keep")
	br1 := inventory.NewBlockReplica(b1, s)
	br1.Group = gKeep
	br1.IsComplete = true
	inv.AddBlockReplica(br1)

	b2 := inv.NewBlock(d, "guid-drop")
	br2 := inventory.NewBlockReplica(b2, s)
	br2.Group = gDrop
	br2.IsComplete = true
	inv.AddBlockReplica(br2)
	dr, _ := d.Replica("T2_US_Example")
	inv.Unlock()

	filtered := filterByGroup([]*inventory.DatasetReplica{dr}, []string{"AnalysisOps"})
	require.Len(t, filtered, 1)
}
