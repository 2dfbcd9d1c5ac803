package metrics

import (
	"time"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// Collector periodically samples the inventory and publishes its size as
// gauges, since the inventory itself has no reason to know about
// Prometheus.
type Collector struct {
	inv    *inventory.Inventory
	stopCh chan struct{}
}

// NewCollector creates a collector over inv.
func NewCollector(inv *inventory.Inventory) *Collector {
	return &Collector{
		inv:    inv,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on a 15s tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectDatasetMetrics()
	c.collectSiteMetrics()
	c.collectBlockReplicaMetrics()
}

func (c *Collector) collectDatasetMetrics() {
	InventoryDatasetsTotal.Set(float64(len(c.inv.Datasets())))
}

func (c *Collector) collectSiteMetrics() {
	sites := c.inv.Sites()

	statusCounts := make(map[inventory.SiteStatus]int)
	for _, s := range sites {
		statusCounts[s.Status]++
	}

	for status, count := range statusCounts {
		InventorySitesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectBlockReplicaMetrics() {
	var total int
	for _, s := range c.inv.Sites() {
		for _, d := range c.inv.Datasets() {
			total += len(s.BlockReplicasOf(d.Name))
		}
	}
	InventoryBlockReplicasTotal.Set(float64(total))
}
