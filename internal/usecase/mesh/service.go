// Package mesh fetches an object's mesh fragments in capped batches and
// stitches them into one consistent vertex/face buffer.
package mesh

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/schlegelp/brainmappy/internal/domain"
	"github.com/schlegelp/brainmappy/internal/meshwire"
	"github.com/schlegelp/brainmappy/internal/metrics"
)

// MaxBatchSize is the service-imposed cap on fragment keys per batch
// request. The remote rejects anything larger.
const MaxBatchSize = 100

// Service is the fragment batch fetcher/merger.
type Service struct {
	api       RawPoster
	listing   FragmentLister
	batchSize int
	logger    *zap.Logger
}

// New creates a mesh service.
func New(api RawPoster, listing FragmentLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, listing: listing, batchSize: MaxBatchSize, logger: logger}
}

// WithBatchSize lowers the fragments-per-request batch size. Values outside
// (0, MaxBatchSize] are ignored.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 && n <= MaxBatchSize {
		s.batchSize = n
	}
	return s
}

// Request identifies the mesh to fetch.
type Request struct {
	VolumeID    string
	MeshName    string
	ObjectID    uint64
	ChangeStack string
}

// batchRequest is the meshes:batch POST body.
type batchRequest struct {
	VolumeID string          `json:"volumeId"`
	MeshName string          `json:"meshName"`
	Batches  []fragmentBatch `json:"batches"`
}

type fragmentBatch struct {
	ObjectID     string   `json:"object_id"`
	FragmentKeys []string `json:"fragment_keys"`
}

// Fragments lists the fragment refs of the requested object.
func (s *Service) Fragments(ctx context.Context, req Request) ([]domain.FragmentRef, error) {
	return s.listing.ListFragments(ctx, req.VolumeID, req.MeshName, req.ObjectID, req.ChangeStack)
}

// Get fetches and merges the object's full mesh. Batches go out strictly in
// listing order, so vertex/face numbering is deterministic for a given
// fragment ordering. No partial mesh is returned on failure.
func (s *Service) Get(ctx context.Context, req Request) (*domain.MergedMesh, error) {
	frags, err := s.listing.ListFragments(ctx, req.VolumeID, req.MeshName, req.ObjectID, req.ChangeStack)
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	return s.Merge(ctx, req, frags)
}

// Merge fetches the given fragment refs in capped batches and merges the
// decoded fragments in processing order.
func (s *Service) Merge(ctx context.Context, req Request, frags []domain.FragmentRef) (*domain.MergedMesh, error) {
	if len(frags) == 0 {
		return nil, fmt.Errorf("object %d: %w", req.ObjectID, domain.ErrNoFragments)
	}

	nBatches := (len(frags) + s.batchSize - 1) / s.batchSize
	merged := &domain.MergedMesh{}

	for start, batchNo := 0, 0; start < len(frags); start, batchNo = start+s.batchSize, batchNo+1 {
		end := start + s.batchSize
		if end > len(frags) {
			end = len(frags)
		}

		body := batchRequest{
			VolumeID: req.VolumeID,
			MeshName: req.MeshName,
		}
		for _, f := range frags[start:end] {
			body.Batches = append(body.Batches, fragmentBatch{
				ObjectID:     f.SupervoxelID,
				FragmentKeys: []string{f.FragmentKey},
			})
		}

		raw, err := s.api.PostRaw(ctx, "meshes.batch", []string{"v1", "objects", "meshes:batch"}, body)
		if err != nil {
			return nil, fmt.Errorf("mesh batch %d/%d: %w", batchNo+1, nBatches, err)
		}

		decoded, err := meshwire.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("mesh batch %d/%d: %w", batchNo+1, nBatches, err)
		}
		for i := range decoded {
			if err := merged.Append(&decoded[i]); err != nil {
				return nil, fmt.Errorf("mesh batch %d/%d: %w", batchNo+1, nBatches, err)
			}
		}

		metrics.MeshBatchesTotal.Inc()
		metrics.MeshFragmentsTotal.Add(float64(len(decoded)))
		s.logger.Debug("mesh batch merged",
			zap.Uint64("object", req.ObjectID),
			zap.Int("batch", batchNo+1),
			zap.Int("batches", nBatches),
			zap.Int("fragments", len(decoded)),
			zap.Int("vertices", len(merged.Vertices)))
	}

	return merged, nil
}
