package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTBBytesRoundTrip(t *testing.T) {
	assert.Equal(t, int64(1<<40), TBToBytes(1))
	assert.InDelta(t, 2.5, BytesToTB(TBToBytes(2.5)), 0.0001)
}

func TestFilterEmpty(t *testing.T) {
	assert.True(t, Filter{}.empty())
	assert.False(t, Filter{Sites: []string{"T2_Test"}}.empty())
}

func TestFilterJoinFragments(t *testing.T) {
	f := Filter{Datasets: []string{"/a/b/c"}}
	assert.Contains(t, f.datasetJoin("blocks"), "tmp_filter_datasets")
	assert.Equal(t, "", f.siteJoin("sites"))
}
