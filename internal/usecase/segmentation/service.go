// Package segmentation looks up per-point segment labels in spatially
// clustered, capped sub-chunks, concurrently if configured, and returns
// them in the caller's original coordinate order.
package segmentation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schlegelp/brainmappy/internal/cluster"
	"github.com/schlegelp/brainmappy/internal/domain"
	"github.com/schlegelp/brainmappy/internal/domain/voxel"
	"github.com/schlegelp/brainmappy/internal/metrics"
)

const (
	// MaxChunkSize is the service cap on coordinates per values request.
	MaxChunkSize = 200
	// DefaultMaxAttempts bounds retries of one sub-chunk request.
	DefaultMaxAttempts = 10
)

// Service is the spatial batch lookup engine.
type Service struct {
	api         Poster
	meta        GeometryReader
	chunkSize   int
	maxAttempts int
	workers     int
	logger      *zap.Logger
}

// New creates a segmentation service with serial dispatch.
func New(api Poster, meta GeometryReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:         api,
		meta:        meta,
		chunkSize:   MaxChunkSize,
		maxAttempts: DefaultMaxAttempts,
		workers:     1,
		logger:      logger,
	}
}

// WithChunkSize lowers the coordinates-per-request chunk size. Values
// outside (0, MaxChunkSize] are ignored.
func (s *Service) WithChunkSize(n int) *Service {
	if n > 0 && n <= MaxChunkSize {
		s.chunkSize = n
	}
	return s
}

// WithMaxAttempts sets the per-chunk retry budget.
func (s *Service) WithMaxAttempts(n int) *Service {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// WithWorkers sets the number of chunk requests in flight at once.
// 1 (the default) dispatches serially.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Request is one label lookup over an ordered coordinate sequence.
type Request struct {
	VolumeID string
	// Coords are X/Y/Z positions, physical units unless RawCoords is set.
	Coords [][3]float64
	// RawCoords marks Coords as already voxel-native.
	RawCoords bool
	// VoxelSize overrides voxel size discovery from volume geometry.
	VoxelSize   *[3]float64
	ChangeStack string
}

// coordJob is one dispatchable sub-chunk. indices point back into the
// caller's coordinate sequence so labels scatter into the right slots.
type coordJob struct {
	indices []int
	points  []voxel.Point
}

type locationsRequest struct {
	Locations  []string    `json:"locations"`
	ChangeSpec *changeSpec `json:"change_spec,omitempty"`
}

type changeSpec struct {
	ChangeStackID string `json:"change_stack_id"`
}

type valuesResponse struct {
	Uint64StrList *struct {
		Values []string `json:"values"`
	} `json:"uint64StrList"`
}

// Lookup returns one label per input coordinate, in input order. Zero means
// unmapped. Any sub-chunk that fails after its retry budget fails the whole
// call; no partial result is returned.
func (s *Service) Lookup(ctx context.Context, req Request) ([]uint64, error) {
	if len(req.Coords) == 0 {
		return []uint64{}, nil
	}

	pts, err := s.voxelize(ctx, req)
	if err != nil {
		return nil, err
	}
	jobs := s.buildJobs(pts)

	// Workers write disjoint index ranges of the shared result buffer, so
	// no lock is needed; errgroup's Wait orders those writes before reads.
	results := make([]uint64, len(pts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return s.runJob(gctx, req, job, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) voxelize(ctx context.Context, req Request) ([]voxel.Point, error) {
	if req.RawCoords {
		return voxel.Convert(req.Coords, nil), nil
	}
	size := req.VoxelSize
	if size == nil {
		geom, err := s.meta.VolumeGeometry(ctx, req.VolumeID)
		if err != nil {
			return nil, fmt.Errorf("discover voxel size: %w", err)
		}
		vs := geom[0].VoxelSize()
		size = &vs
	}
	return voxel.Convert(req.Coords, size), nil
}

// buildJobs groups points spatially, then slices each group into capped
// sub-chunks. Clustering balances proximity, not size, so a group may
// exceed the cap.
func (s *Service) buildJobs(pts []voxel.Point) []coordJob {
	if len(pts) <= s.chunkSize {
		return s.sliceGroup(allIndices(len(pts)), pts, nil)
	}

	k := (len(pts) + s.chunkSize - 1) / s.chunkSize
	floats := make([][3]float64, len(pts))
	for i, p := range pts {
		floats[i] = p.Float()
	}
	labels := cluster.Assign(floats, k, cluster.DefaultMaxIterations)

	var jobs []coordJob
	for c := 0; c < k; c++ {
		var indices []int
		for i, l := range labels {
			if l == c {
				indices = append(indices, i)
			}
		}
		if len(indices) == 0 {
			continue
		}
		jobs = s.sliceGroup(indices, pts, jobs)
	}
	return jobs
}

func (s *Service) sliceGroup(indices []int, pts []voxel.Point, jobs []coordJob) []coordJob {
	for start := 0; start < len(indices); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(indices) {
			end = len(indices)
		}
		sub := indices[start:end]
		points := make([]voxel.Point, len(sub))
		for i, idx := range sub {
			points[i] = pts[idx]
		}
		jobs = append(jobs, coordJob{indices: sub, points: points})
	}
	return jobs
}

// runJob posts one sub-chunk, retrying transport failures up to the attempt
// budget, and scatters the labels into out at the job's original indices.
func (s *Service) runJob(ctx context.Context, req Request, job coordJob, out []uint64) error {
	body := locationsRequest{Locations: make([]string, len(job.points))}
	for i, p := range job.points {
		body.Locations[i] = p.String()
	}
	if req.ChangeStack != "" {
		body.ChangeSpec = &changeSpec{ChangeStackID: req.ChangeStack}
	}

	segments := []string{"v1", "volumes", req.VolumeID, "values"}

	var resp valuesResponse
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp = valuesResponse{}
		err = s.api.PostJSON(ctx, "volumes.values", segments, body, &resp)
		if err == nil {
			break
		}
		// Only status failures are worth repeating; a shape or context
		// error will not improve on retry.
		if !errors.Is(err, domain.ErrTransport) || ctx.Err() != nil {
			break
		}
		if attempt < s.maxAttempts {
			metrics.SegRetriesTotal.Inc()
			s.logger.Warn("segmentation chunk retry",
				zap.Int("attempt", attempt),
				zap.Int("size", len(job.points)),
				zap.Error(err))
		}
	}
	if err != nil {
		metrics.SegChunksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("segmentation chunk of %d locations: %w", len(job.points), err)
	}

	if resp.Uint64StrList == nil {
		metrics.SegChunksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("values response missing uint64StrList: %w", domain.ErrUnexpectedResponse)
	}
	values := resp.Uint64StrList.Values
	if len(values) != len(job.points) {
		metrics.SegChunksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("values response has %d labels for %d locations: %w",
			len(values), len(job.points), domain.ErrUnexpectedResponse)
	}

	for i, v := range values {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			metrics.SegChunksTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("label %q is not a uint64: %w", v, domain.ErrUnexpectedResponse)
		}
		out[job.indices[i]] = id
	}

	metrics.SegChunksTotal.WithLabelValues("success").Inc()
	return nil
}

func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
