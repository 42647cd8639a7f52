package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики резолвера.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_cache_hits_total",
		Help: "Общее количество попаданий в кэш адресов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_cache_misses_total",
		Help: "Общее количество промахов кэша адресов.",
	})
	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rm_cache_evictions_total",
		Help: "Количество слотов кэша, вытесненных по ёмкости.",
	})
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rm_mutations_total",
		Help: "Количество мутирующих вызовов по операции и результату.",
	}, []string{"operation", "status"})
	multicallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rm_multicall_total",
		Help: "Количество пакетных выполнений по результату (committed/rolled_back).",
	}, []string{"status"})
	multicallOperations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rm_multicall_operations",
		Help:    "Размер пакета multicall (число операций).",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
	recordsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rm_records_active",
		Help: "Количество активных записей резолвера.",
	})
)

// statusLabel возвращает значение метки status для ошибки.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
