package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

func TestDatasetsNeedingDetailSelectsByStatusAndType(t *testing.T) {
	inv := inventory.New()
	inv.Lock()
	valid := inv.NewDataset("/a/valid/b")
	valid.Status = inventory.DatasetValid
	valid.DataType = "MC"
	valid.SoftwareVersion = "1.2.3"

	production := inv.NewDataset("/a/production/b")
	production.Status = inventory.DatasetProduction
	production.DataType = "MC"
	production.SoftwareVersion = "1.2.3"

	unknownType := inv.NewDataset("/a/unknowntype/b")
	unknownType.Status = inventory.DatasetValid
	unknownType.DataType = ""
	unknownType.SoftwareVersion = "1.2.3"

	noVersion := inv.NewDataset("/a/noversion/b")
	noVersion.Status = inventory.DatasetValid
	noVersion.DataType = "MC"
	noVersion.SoftwareVersion = ""
	inv.Unlock()

	targets := datasetsNeedingDetail(inv)
	assert.NotContains(t, targets, "/a/valid/b")
	assert.Contains(t, targets, "/a/production/b")
	assert.Contains(t, targets, "/a/unknowntype/b")
	assert.Contains(t, targets, "/a/noversion/b")
}
