package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts committed and rejected ledger writes and report cache
// behaviour. A nil *LedgerMetrics is a no-op.
type LedgerMetrics struct {
	salesPosted    *prometheus.CounterVec
	salesRevenue   *prometheus.CounterVec
	salesRejected  *prometheus.CounterVec
	salariesPaid   prometheus.Counter
	salariesNet    prometheus.Counter
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger collectors against registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &LedgerMetrics{
		salesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_posted_total",
			Help: "Committed sales by payment method.",
		}, []string{"method"}),
		salesRevenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_revenue_total",
			Help: "Committed sale totals by payment method.",
		}, []string{"method"}),
		salesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_rejected_total",
			Help: "Sales rolled back, by error kind.",
		}, []string{"kind"}),
		salariesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_salaries_paid_total",
			Help: "Salary payments committed.",
		}),
		salariesNet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_salaries_net_total",
			Help: "Net salary amount committed.",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_report_cache_hits_total",
			Help: "Report requests served from cache.",
		}, []string{"report"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_report_cache_misses_total",
			Help: "Report requests that rebuilt the report.",
		}, []string{"report"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_report_build_duration_seconds",
			Help:    "Time spent building reports from the ledger.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
	}
	registerer.MustRegister(m.salesPosted, m.salesRevenue, m.salesRejected, m.salariesPaid, m.salariesNet,
		m.cacheHits, m.cacheMisses, m.reportDuration)
	return m
}

// SalePosted records a committed sale.
func (m *LedgerMetrics) SalePosted(method string, total float64) {
	if m == nil {
		return
	}
	m.salesPosted.WithLabelValues(method).Inc()
	m.salesRevenue.WithLabelValues(method).Add(total)
}

// SaleRejected records a sale that was rolled back.
func (m *LedgerMetrics) SaleRejected(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.salesRejected.WithLabelValues(kind).Inc()
}

// SalariesPaid records committed salary payments.
func (m *LedgerMetrics) SalariesPaid(count int, net float64) {
	if m == nil || count <= 0 {
		return
	}
	m.salariesPaid.Add(float64(count))
	m.salariesNet.Add(net)
}

// ReportCacheHit records a cached report read.
func (m *LedgerMetrics) ReportCacheHit(report string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(report).Inc()
}

// ReportCacheMiss records a report rebuild.
func (m *LedgerMetrics) ReportCacheMiss(report string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(report).Inc()
}

// ObserveReportBuild records how long a report build took.
func (m *LedgerMetrics) ObserveReportBuild(report string, d time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report).Observe(d.Seconds())
}
