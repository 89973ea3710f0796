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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	storeSubsystem = "store"
	statsSubsystem = "stats"
	subsystemHTTP  = "http"
	subsystemIPC   = "ipc"
)

var (
	metrics bool

	queuedTasks    prometheus.Gauge
	storeGets      prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	decodeFailures prometheus.Counter

	tSnapshotLoad   prometheus.Gauge
	tActorLoad      prometheus.Histogram
	tInvariantCheck prometheus.Histogram

	httpCount    *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	ipcCount     prometheus.Gauge
)

const (
	TASKS_QUEUED      = "tasks_queued"
	STORE_GETS        = "store_gets"
	CACHE_HITS        = "cache_hits"
	CACHE_MISSES      = "cache_misses"
	DECODE_FAILURES   = "decode_failures"
	T_SNAPSHOT_LOAD   = "t_snapshot_load"
	T_ACTOR_LOAD      = "t_actor_load"
	T_INVARIANT_CHECK = "t_invariant_check"
)

// Init module initialization
func Init() {
	metrics = true

	queuedTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      TASKS_QUEUED,
		Help:      "Number of validation tasks currently queued",
	})
	storeGets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: storeSubsystem,
		Name:      STORE_GETS,
		Help:      "Number of block fetches served by the store",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: storeSubsystem,
		Name:      CACHE_HITS,
		Help:      "Number of block fetches served from the LRU cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: storeSubsystem,
		Name:      CACHE_MISSES,
		Help:      "Number of block fetches that fell through to the backing store",
	})
	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      DECODE_FAILURES,
		Help:      "Number of actor state loads that failed to decode",
	})

	tSnapshotLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: statsSubsystem,
		Name:      T_SNAPSHOT_LOAD,
		Help:      "CAR snapshot load time",
	})
	tActorLoad = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: statsSubsystem,
		Name:      T_ACTOR_LOAD,
		Help:      "Actor state load and decode time",
	})
	tInvariantCheck = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: statsSubsystem,
		Name:      T_INVARIANT_CHECK,
		Help:      "Actor state invariant check time",
	})

	httpCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "count",
		Help:      "http request count per RPC method",
	}, []string{"method"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "duration",
		Help:      "http request duration per RPC method",
	}, []string{"method"})
	ipcCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemIPC,
		Name:      "count",
		Help:      "unix socket connection count",
	})
}

// RegisterCacheCollector creates a metric collector for the given block cache
func RegisterCacheCollector(name string, sg CacheStatsGetter) {
	if metrics {
		prometheus.Register(NewCacheStatsCollector(name, sg))
	}
}

// IncQueuedTasks increments the number of queued validation tasks
func IncQueuedTasks() {
	if metrics {
		queuedTasks.Inc()
	}
}

// DecQueuedTasks decrements the number of queued validation tasks
func DecQueuedTasks() {
	if metrics {
		queuedTasks.Dec()
	}
}

// IncStoreGet increments the number of block fetches served by the store
func IncStoreGet() {
	if metrics {
		storeGets.Inc()
	}
}

// IncCacheHit increments the number of block fetches served from cache
func IncCacheHit() {
	if metrics {
		cacheHits.Inc()
	}
}

// IncCacheMiss increments the number of block fetches that missed the cache
func IncCacheMiss() {
	if metrics {
		cacheMisses.Inc()
	}
}

// IncDecodeFailure increments the number of failed actor state decodes
func IncDecodeFailure() {
	if metrics {
		decodeFailures.Inc()
	}
}

// SetSnapshotLoadTime sets the CAR snapshot load time
func SetSnapshotLoadTime(t time.Duration) {
	if metrics {
		tSnapshotLoad.Set(t.Seconds())
	}
}

// SetTimeMetric time metric observation
func SetTimeMetric(name string, t time.Duration) {
	if !metrics {
		return
	}
	tAsF64 := t.Seconds()
	switch name {
	case T_ACTOR_LOAD:
		tActorLoad.Observe(tAsF64)
	case T_INVARIANT_CHECK:
		tInvariantCheck.Observe(tAsF64)
	}
}
