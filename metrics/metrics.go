// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics provides the deterministic integer counters and gauges
// used for consensus telemetry, and the text-format exporter that turns
// them into a Prometheus scrape. Nothing here influences a consensus
// decision: scores, fees, and selections are computed entirely in
// fixedpoint/gbdt/vrng before a single metric is touched. Values are kept
// as integers in-process; the Prometheus mirror of each Counter and Gauge
// holds the same value as a float64.
package metrics

import (
	"bufio"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics bundles the named counters/gauges for DAG and round-engine
// telemetry, plus the underlying Prometheus registry used to export them.
// The round engine updates DagCommitted and the Round* series; the dag
// package keeps its own counters (ParallelDAG.Snapshot) and does not write
// to the other Dag* series.
type Metrics struct {
	Registry *prometheus.Registry
	Named    *Registry

	// DAG telemetry.
	DagInserted      Counter
	DagBecameReady   Counter
	DagCommitted     Counter
	DagQueueOverflow Counter
	DagDuplicates    Counter
	DagOrphanCommits Counter

	// Round-engine telemetry.
	RoundSelectionFallbacks   Counter
	RoundEquivocationsSlashed Counter
	RoundsClosed              Counter
	RoundFeeAdjustmentPPM     Gauge // fee adjustment factor scaled by 1e6
	RoundHealthScorePPM       Gauge // network health score scaled by 1e6
}

// New builds a fresh Metrics bundle with all series registered.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	named := NewRegistry(reg)

	m := &Metrics{Registry: reg, Named: named}
	var err error
	if m.DagInserted, err = named.Counter("dag_inserted_total", "blocks inserted into the DAG"); err != nil {
		return nil, err
	}
	if m.DagBecameReady, err = named.Counter("dag_became_ready_total", "blocks that became ready"); err != nil {
		return nil, err
	}
	if m.DagCommitted, err = named.Counter("dag_committed_total", "blocks committed"); err != nil {
		return nil, err
	}
	if m.DagQueueOverflow, err = named.Counter("dag_ready_queue_overflow_total", "ready-queue drop-oldest events"); err != nil {
		return nil, err
	}
	if m.DagDuplicates, err = named.Counter("dag_duplicate_inserts_total", "duplicate insert attempts"); err != nil {
		return nil, err
	}
	if m.DagOrphanCommits, err = named.Counter("dag_orphan_commits_total", "commits of blocks never seen live"); err != nil {
		return nil, err
	}
	if m.RoundSelectionFallbacks, err = named.Counter("round_selection_fallbacks_total", "times fallback selection was used"); err != nil {
		return nil, err
	}
	if m.RoundEquivocationsSlashed, err = named.Counter("round_equivocations_slashed_total", "validators slashed for equivocation"); err != nil {
		return nil, err
	}
	if m.RoundsClosed, err = named.Counter("rounds_closed_total", "rounds that reached Closed"); err != nil {
		return nil, err
	}
	if m.RoundFeeAdjustmentPPM, err = named.Gauge("round_fee_adjustment_ppm", "fee adjustment factor, scaled 1e6"); err != nil {
		return nil, err
	}
	if m.RoundHealthScorePPM, err = named.Gauge("round_health_score_ppm", "network health score, scaled 1e6"); err != nil {
		return nil, err
	}
	return m, nil
}

// Register registers an additional Prometheus collector on this bundle's
// registry.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.Registry.Register(c)
}

// Export writes every registered series in Prometheus text exposition
// format to w. Each series is written with its raw integer value (a ppm
// gauge appears as, e.g., 1500000); no scaled value is divided down here.
func (m *Metrics) Export(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	enc := expfmt.NewEncoder(bw, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// gatherFamily returns the single metric family named name from reg,
// without writing the whole text blob. No code in this module calls it.
func gatherFamily(reg *prometheus.Registry, name string) (*dto.MetricFamily, bool) {
	families, err := reg.Gather()
	if err != nil {
		return nil, false
	}
	for _, f := range families {
		if f.GetName() == name {
			return f, true
		}
	}
	return nil, false
}
