// Package metrics defines the Prometheus instruments for the brainmaps
// client. Nothing is registered unless the caller opts in with a registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Client Prometheus metrics.
var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "api_requests_total",
			Help:      "Total number of brainmaps API requests",
		},
		[]string{"method", "op", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brainmappy",
			Name:      "api_request_duration_seconds",
			Help:      "Brainmaps API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "op"},
	)

	MeshBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "mesh_batches_total",
			Help:      "Total mesh batch requests issued",
		},
	)

	MeshFragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "mesh_fragments_total",
			Help:      "Total mesh fragments decoded and merged",
		},
	)

	SegChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "seg_chunks_total",
			Help:      "Segmentation lookup sub-chunks by outcome",
		},
		[]string{"status"}, // "success" / "error"
	)

	SegRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "seg_retries_total",
			Help:      "Total segmentation sub-chunk retries",
		},
	)

	ListingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brainmappy",
			Name:      "listing_cache_total",
			Help:      "Metadata listing cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registered bool

// Register registers all client metrics on the given registerer.
// Safe to call more than once; only the first call registers.
func Register(reg prometheus.Registerer) {
	if registered || reg == nil {
		return
	}
	reg.MustRegister(APIRequestsTotal)
	reg.MustRegister(APIRequestDuration)
	reg.MustRegister(MeshBatchesTotal)
	reg.MustRegister(MeshFragmentsTotal)
	reg.MustRegister(SegChunksTotal)
	reg.MustRegister(SegRetriesTotal)
	reg.MustRegister(ListingCacheTotal)
	registered = true
}
