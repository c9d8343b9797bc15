package brainmappy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/schlegelp/brainmappy/internal/transport/brainmaps"
)

// DefaultMeshName is the mesh resolution used when none is given.
const DefaultMeshName = "mcws_quad1e6"

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client

	volumeID    string
	changeStack string
	meshName    string

	meshBatchSize     int
	locationChunkSize int
	maxRetries        int
	workers           int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		baseURL:  brainmaps.DefaultBaseURL,
		meshName: DefaultMeshName,
		workers:  1,
	}
}

// WithTokenSource sets the OAuth2 token source used to authenticate
// requests.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return optionFunc(func(c *clientConfig) {
		c.tokenSource = ts
	})
}

// WithHTTPClient sets a prebuilt HTTP client (which must already carry
// auth). Takes precedence over WithTokenSource.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithBaseURL overrides the production service endpoint.
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = u
	})
}

// WithVolume sets the default segmentation volume for all calls that do not
// name one explicitly.
func WithVolume(volumeID string) Option {
	return optionFunc(func(c *clientConfig) {
		c.volumeID = volumeID
	})
}

// WithChangeStack sets a default agglomeration change stack.
func WithChangeStack(id string) Option {
	return optionFunc(func(c *clientConfig) {
		c.changeStack = id
	})
}

// WithMeshName sets the default mesh resolution name.
// Default: "mcws_quad1e6".
func WithMeshName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.meshName = name
	})
}

// WithMeshBatchSize lowers the fragments-per-request batch size below the
// service cap of 100.
func WithMeshBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.meshBatchSize = n
	})
}

// WithLocationChunkSize lowers the coordinates-per-request chunk size below
// the service cap of 200.
func WithLocationChunkSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.locationChunkSize = n
	})
}

// WithMaxRetries sets the retry budget for one segmentation sub-chunk
// request. Default: 10.
func WithMaxRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRetries = n
	})
}

// WithConcurrency sets how many segmentation chunk requests may be in
// flight at once. Default: 1 (serial).
func WithConcurrency(workers int) Option {
	return optionFunc(func(c *clientConfig) {
		if workers > 0 {
			c.workers = workers
		}
	})
}

// WithLogger enables structured logging for client operations.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (request counts and durations,
// batch and cache counters) on the given registerer.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
