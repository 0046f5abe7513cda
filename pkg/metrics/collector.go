// Package metrics exposes heap statistics as Prometheus metrics.
//
// The collector reads a fresh Stats snapshot on every scrape, so registering
// it costs nothing on the allocation paths.
//
//	root, _ := heap.NewRoot(config.Default(), nil)
//	prometheus.MustRegister(metrics.NewCollector("tierheap", root, nil))
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/tierheap/heap"
)

// Source provides statistics snapshots. *heap.Root implements it.
type Source interface {
	Stats() heap.Stats
}

type metric struct {
	desc   *prometheus.Desc
	kind   prometheus.ValueType
	labels []string
	value  func(heap.Stats) int64
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	src     Source
	metrics []metric
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector whose metric names start with namespace.
// constLabels are attached to every metric, which lets several hierarchies
// share a registry.
func NewCollector(namespace string, src Source, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, constLabels)
	}
	slides := desc("slides_total", "Local heap slides by direction.", "direction")

	return &Collector{
		src: src,
		metrics: []metric{
			{desc("chunks_minted_total", "Chunks mapped since the root was created."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.ChunksMinted }},
			{desc("chunks_live", "Chunks currently mapped."), prometheus.GaugeValue, nil,
				func(s heap.Stats) int64 { return s.ChunksLive }},
			{desc("mapped_bytes", "Bytes currently mapped for chunks."), prometheus.GaugeValue, nil,
				func(s heap.Stats) int64 { return s.BytesMapped }},
			{desc("blocks_formatted_total", "Block formats for a size class."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.BlocksFormatted }},
			{desc("blocks_evacuated_total", "Blocks handed to a parent heap."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.BlocksEvacuated }},
			{slides, prometheus.CounterValue, []string{"left"},
				func(s heap.Stats) int64 { return s.SlidesLeft }},
			{slides, prometheus.CounterValue, []string{"right"},
				func(s heap.Stats) int64 { return s.SlidesRight }},
			{desc("foreign_frees_total", "Frees by a non-owner."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.ForeignFrees }},
			{desc("empty_enough_total", "Blocks that fell to half occupancy."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.EmptyEnough }},
			{desc("drops_total", "Regional heaps torn down."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.Drops }},
			{desc("trimmed_bytes_total", "Bytes returned to the OS by Trim."), prometheus.CounterValue, nil,
				func(s heap.Stats) int64 { return s.BytesTrimmed }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]bool, len(c.metrics))
	for _, m := range c.metrics {
		if !seen[m.desc] {
			seen[m.desc] = true
			ch <- m.desc
		}
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, float64(m.value(s)), m.labels...)
	}
}
