package restclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePairsMap(t *testing.T) {
	pairs, err := normalizePairs(map[string]string{"dataset": "/a/b/c"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "dataset", pairs[0].Key)
}

func TestNormalizePairsStringSlice(t *testing.T) {
	pairs, err := normalizePairs([]string{"site=T2_Test", "group=AnalysisOps"})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Key: "site", Value: "T2_Test"}, pairs[0])
}

func TestNormalizePairsRepeatedKeys(t *testing.T) {
	pairs, err := normalizePairs([]Pair{{Key: "dataset", Value: "a"}, {Key: "dataset", Value: "b"}})
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestNormalizePairsUnsupported(t *testing.T) {
	_, err := normalizePairs(42)
	assert.Error(t, err)
}

func TestEncodeQueryPreservesRepeats(t *testing.T) {
	q := encodeQuery([]Pair{{Key: "dataset", Value: "a"}, {Key: "dataset", Value: "b"}})
	assert.Contains(t, q, "dataset=a")
	assert.Contains(t, q, "dataset=b")
}

func TestEncodeQueryEmpty(t *testing.T) {
	assert.Equal(t, "", encodeQuery(nil))
}

func TestPairsToJSONMapCollapsesRepeats(t *testing.T) {
	m := pairsToJSONMap([]Pair{{Key: "dataset", Value: "a"}, {Key: "dataset", Value: "b"}, {Key: "site", Value: "T2"}})
	assert.Equal(t, []string{"a", "b"}, m["dataset"])
	assert.Equal(t, "T2", m["site"])
}
