package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	runningDesc = prometheus.NewDesc(
		"steward_worker_pool_running",
		"Number of workers currently running a task",
		[]string{"pool"}, nil,
	)
	capacityDesc = prometheus.NewDesc(
		"steward_worker_pool_capacity",
		"Configured number of workers in the pool",
		[]string{"pool"}, nil,
	)
)

type poolCollector struct {
	pools *Pools
}

// Collector exposes running and capacity gauges for every pool. Values are
// read from ants at scrape time.
func (p *Pools) Collector() prometheus.Collector {
	return poolCollector{pools: p}
}

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runningDesc
	ch <- capacityDesc
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, pool := range []*Pool{c.pools.General, c.pools.IdP} {
		ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, float64(pool.pool.Running()), pool.name)
		ch <- prometheus.MustNewConstMetric(capacityDesc, prometheus.GaugeValue, float64(pool.pool.Cap()), pool.name)
	}
}
