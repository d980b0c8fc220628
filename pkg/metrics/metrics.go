// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

const (
	ModuleSQLExec = "sqlexec"
)

// metrics labels.
const (
	LabelEngine = "engine"
	LabelQueue  = "queue"
	LabelTxn    = "txn"
	LabelMemo   = "memo"
	LabelConn   = "conn"
)

var registerOnce sync.Once

// MetricsManager registers the collectors of the process.
type MetricsManager struct{}

func NewMetricsManager() *MetricsManager {
	return &MetricsManager{}
}

// Init registers the metrics. It can be called many times in one process, e.g. by tests.
func (mm *MetricsManager) Init(lg *zap.Logger) {
	registerOnce.Do(func() {
		// Enable the mutex profile, 1/10 of mutex blocking event sampling.
		runtime.SetMutexProfileFraction(10)
		registerEngineMetrics()
		lg.Info("metrics registered")
	})
}

func registerEngineMetrics() {
	prometheus.DefaultRegisterer.Unregister(collectors.NewGoCollector())
	prometheus.MustRegister(collectors.NewGoCollector(collectors.WithGoCollections(collectors.GoRuntimeMetricsCollection | collectors.GoRuntimeMemStatsCollection)))

	for _, c := range colls {
		prometheus.MustRegister(c)
	}
}

// Collect returns the metrics of the collector. It is only used for testing.
func Collect(coll prometheus.Collector) ([]*dto.Metric, error) {
	results := make([]*dto.Metric, 0)
	ch := make(chan prometheus.Metric, 1024)
	go func() {
		coll.Collect(ch)
		close(ch)
	}()
	for m := range ch {
		var metric dto.Metric
		if err := m.Write(&metric); err != nil {
			return nil, err
		}
		results = append(results, &metric)
	}
	return results, nil
}

// ReadCounter reads the value from the counter. It is only used for testing.
func ReadCounter(counter prometheus.Counter) (int, error) {
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Counter.GetValue()), nil
}

// ReadGauge reads the value from the gauge. It is only used for testing.
func ReadGauge(gauge prometheus.Gauge) (int, error) {
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Gauge.GetValue()), nil
}

// ReadHistogramCount reads the sample count of the histogram. It is only used for testing.
func ReadHistogramCount(observer prometheus.Observer) (uint64, error) {
	var metric dto.Metric
	if err := observer.(prometheus.Metric).Write(&metric); err != nil {
		return 0, err
	}
	return metric.Histogram.GetSampleCount(), nil
}
