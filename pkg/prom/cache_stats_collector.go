// VulcanizeDB
// Copyright © 2023 Vulcanize

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fil_state_service"
	subsystem = "block_cache"
)

// CacheStatsGetter is an interface that exposes block cache statistics.
type CacheStatsGetter interface {
	Stats() (hits, misses int64)
	Len() int
}

// CacheStatsCollector implements the prometheus.Collector interface.
type CacheStatsCollector struct {
	sg CacheStatsGetter

	// descriptions of exported metrics
	sizeDesc   *prometheus.Desc
	hitsDesc   *prometheus.Desc
	missesDesc *prometheus.Desc
}

// NewCacheStatsCollector creates a new CacheStatsCollector.
func NewCacheStatsCollector(cacheName string, sg CacheStatsGetter) *CacheStatsCollector {
	labels := prometheus.Labels{"cache_name": cacheName}
	return &CacheStatsCollector{
		sg: sg,
		sizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "size"),
			"The number of blocks currently held in the cache.",
			nil,
			labels,
		),
		hitsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "hits"),
			"The total number of fetches served from the cache.",
			nil,
			labels,
		),
		missesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "misses"),
			"The total number of fetches that fell through to the backing store.",
			nil,
			labels,
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (c CacheStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeDesc
	ch <- c.hitsDesc
	ch <- c.missesDesc
}

// Collect implements the prometheus.Collector interface.
func (c CacheStatsCollector) Collect(ch chan<- prometheus.Metric) {
	hits, misses := c.sg.Stats()

	ch <- prometheus.MustNewConstMetric(
		c.sizeDesc,
		prometheus.GaugeValue,
		float64(c.sg.Len()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.hitsDesc,
		prometheus.CounterValue,
		float64(hits),
	)
	ch <- prometheus.MustNewConstMetric(
		c.missesDesc,
		prometheus.CounterValue,
		float64(misses),
	)
}
