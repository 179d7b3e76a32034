package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "statement_ledger_"

var (
	registerOnce sync.Once

	extractionsTotal  *prometheus.CounterVec
	extractionLatency *prometheus.HistogramVec
	movementsTotal    *prometheus.CounterVec
	fallbackTotal     *prometheus.CounterVec
	verdictsTotal     *prometheus.CounterVec
	importErrors      *prometheus.CounterVec
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		extractionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "extractions_total",
				Help: "Statement extractions by institution and result status",
			},
			[]string{"bank", "status"},
		)
		extractionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "extraction_latency_seconds",
				Help:    "Time from upload to extraction result, by source format",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		movementsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "movements_total",
				Help: "Extracted movements by polarity",
			},
			[]string{"tipo"},
		)
		fallbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fallback_total",
				Help: "Extractions that found no movements, by institution",
			},
			[]string{"bank"},
		)
		verdictsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "verdicts_total",
				Help: "Period/identity verdicts by status",
			},
			[]string{"status"},
		)
		importErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_errors_total",
				Help: "Failed imports by reason",
			},
			[]string{"reason"},
		)

		prometheus.MustRegister(
			extractionsTotal,
			extractionLatency,
			movementsTotal,
			fallbackTotal,
			verdictsTotal,
			importErrors,
		)
	})
}

// Extraction is what ObserveExtraction needs from a finished extraction.
type Extraction struct {
	Bank     string
	Status   string
	Verdict  string
	Source   string
	Fallback bool
	Cargos   int
	Abonos   int
	Duration time.Duration
}

// ObserveExtraction records a completed extraction.
func ObserveExtraction(e Extraction) {
	if extractionsTotal == nil {
		return
	}
	if e.Bank == "" {
		e.Bank = "unknown"
	}
	if e.Source == "" {
		e.Source = "text"
	}
	extractionsTotal.WithLabelValues(e.Bank, e.Status).Inc()
	extractionLatency.WithLabelValues(e.Source).Observe(e.Duration.Seconds())
	movementsTotal.WithLabelValues("CARGO").Add(float64(e.Cargos))
	movementsTotal.WithLabelValues("ABONO").Add(float64(e.Abonos))
	if e.Fallback {
		fallbackTotal.WithLabelValues(e.Bank).Inc()
	}
	if e.Verdict != "" {
		verdictsTotal.WithLabelValues(e.Verdict).Inc()
	}
}

// IncImportError counts an import that failed before producing a result.
func IncImportError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if importErrors != nil {
		importErrors.WithLabelValues(reason).Inc()
	}
}
