package metrics

import "github.com/prometheus/client_golang/prometheus"

// IndexMetrics 是索引服务的预定义指标。
type IndexMetrics struct {
	BuildsTotal     *prometheus.CounterVec   // 构建次数 (维度: status)
	BuildDuration   *prometheus.HistogramVec // 构建耗时 (维度: status)
	QueriesTotal    *prometheus.CounterVec   // 查询次数 (维度: kind, status)
	CanonicalTables *prometheus.GaugeVec     // 去重后的块表数 (维度: index)
	SequenceLength  *prometheus.GaugeVec     // 序列长度 (维度: index)
}

// NewIndexMetrics 在 m 上注册索引指标。
func NewIndexMetrics(m *Metrics) *IndexMetrics {
	return &IndexMetrics{
		BuildsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "rmq_index_builds_total",
			Help: "Total number of index builds",
		}, []string{"status"}),
		BuildDuration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rmq_index_build_duration_seconds",
			Help:    "Index build latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"status"}),
		QueriesTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "rmq_index_queries_total",
			Help: "Total number of index queries",
		}, []string{"kind", "status"}),
		CanonicalTables: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rmq_index_canonical_tables",
			Help: "Distinct canonical block tables held by an index",
		}, []string{"index"}),
		SequenceLength: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rmq_index_sequence_length",
			Help: "Number of elements indexed",
		}, []string{"index"}),
	}
}

// ObserveBuild 记录一次构建。
func (im *IndexMetrics) ObserveBuild(status string, seconds float64) {
	if im == nil {
		return
	}
	im.BuildsTotal.WithLabelValues(status).Inc()
	im.BuildDuration.WithLabelValues(status).Observe(seconds)
}

// ObserveQuery 记录一次查询。
func (im *IndexMetrics) ObserveQuery(kind, status string) {
	if im == nil {
		return
	}
	im.QueriesTotal.WithLabelValues(kind, status).Inc()
}

// SetIndexShape 记录索引规模。
func (im *IndexMetrics) SetIndexShape(name string, elements, tables int) {
	if im == nil {
		return
	}
	im.SequenceLength.WithLabelValues(name).Set(float64(elements))
	im.CanonicalTables.WithLabelValues(name).Set(float64(tables))
}

// DropIndex 删除索引对应的仪表盘序列。
func (im *IndexMetrics) DropIndex(name string) {
	if im == nil {
		return
	}
	im.SequenceLength.DeleteLabelValues(name)
	im.CanonicalTables.DeleteLabelValues(name)
}
