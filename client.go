// Package brainmappy is a Go client for the Google brainmaps API. It
// fetches fragmented 3D object meshes and volumetric segmentation labels
// and reassembles them into coherent, indexable structures.
package brainmappy

import (
	"context"

	"go.uber.org/zap"

	"github.com/schlegelp/brainmappy/internal/logger"
	"github.com/schlegelp/brainmappy/internal/metrics"
	"github.com/schlegelp/brainmappy/internal/repository/listing"
	"github.com/schlegelp/brainmappy/internal/transport/brainmaps"
	meshuc "github.com/schlegelp/brainmappy/internal/usecase/mesh"
	seguc "github.com/schlegelp/brainmappy/internal/usecase/segmentation"
)

// Client is the brainmappy SDK entry point. It replaces the ambient
// session/volume globals of older clients: everything a call needs is held
// here or passed explicitly.
type Client struct {
	api     *brainmaps.Client
	listing *listing.Repo
	meshSvc *meshuc.Service
	segSvc  *seguc.Service

	volumeID    string
	changeStack string
	meshName    string
	logger      *zap.Logger
}

// New creates a brainmappy Client. Authentication comes from WithTokenSource
// or a prebuilt WithHTTPClient; without either, requests go out bare (only
// useful against local test servers).
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}

	if cfg.metricsReg != nil {
		metrics.Register(cfg.metricsReg)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	api, err := brainmaps.New(&brainmaps.Config{
		BaseURL:     cfg.baseURL,
		TokenSource: cfg.tokenSource,
		HTTPClient:  cfg.httpClient,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	repo, err := listing.New(api, log)
	if err != nil {
		return nil, err
	}

	meshSvc := meshuc.New(api, repo, log)
	if cfg.meshBatchSize > 0 {
		meshSvc = meshSvc.WithBatchSize(cfg.meshBatchSize)
	}

	segSvc := seguc.New(api, repo, log).WithWorkers(cfg.workers)
	if cfg.locationChunkSize > 0 {
		segSvc = segSvc.WithChunkSize(cfg.locationChunkSize)
	}
	if cfg.maxRetries > 0 {
		segSvc = segSvc.WithMaxAttempts(cfg.maxRetries)
	}

	return &Client{
		api:         api,
		listing:     repo,
		meshSvc:     meshSvc,
		segSvc:      segSvc,
		volumeID:    cfg.volumeID,
		changeStack: cfg.changeStack,
		meshName:    cfg.meshName,
		logger:      log,
	}, nil
}

// Meshes returns the mesh fetching service.
func (c *Client) Meshes() *MeshService {
	return &MeshService{c: c}
}

// Segmentation returns the segment label lookup service.
func (c *Client) Segmentation() *SegmentationService {
	return &SegmentationService{c: c}
}

// Metadata returns the metadata listing service.
func (c *Client) Metadata() *MetadataService {
	return &MetadataService{c: c}
}

// ContextWithLogger returns a context carrying a request-scoped logger. The
// transport prefers it over the client logger, so per-call fields (object id,
// request id) can ride along without new signatures.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return logger.ContextWithLogger(ctx, l)
}

// volume resolves a per-call volume override against the client default.
func (c *Client) volume(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.volumeID != "" {
		return c.volumeID, nil
	}
	return "", ErrVolumeRequired
}
