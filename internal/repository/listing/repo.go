// Package listing talks to the brainmaps listing endpoints: fragment lists
// for mesh fetching and the read-only metadata listings (volumes, projects,
// datasets, change stacks). Metadata listings are memoized in a bounded,
// keyed LRU owned by the repository; fragment lists are never cached.
package listing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/schlegelp/brainmappy/internal/domain"
	"github.com/schlegelp/brainmappy/internal/metrics"
)

// cacheSize bounds the number of memoized listing responses.
const cacheSize = 32

// api is the consumer interface for the brainmaps transport.
type api interface {
	GetJSON(ctx context.Context, op string, segments []string, query url.Values, out any) error
}

// Repo is the listing collaborator.
type Repo struct {
	api    api
	cache  *lru.Cache[string, any]
	logger *zap.Logger
}

// New creates a listing repository with an empty cache.
func New(a api, logger *zap.Logger) (*Repo, error) {
	c, err := lru.New[string, any](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create listing cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{api: a, cache: c, logger: logger}, nil
}

// Invalidate drops every memoized listing.
func (r *Repo) Invalidate() {
	r.cache.Purge()
}

// ListFragments returns the ordered (supervoxel, fragment key) pairs that
// make up an object's mesh. Not cached: fragment sets change as objects are
// edited. An empty set is domain.ErrNoFragments.
func (r *Repo) ListFragments(ctx context.Context, volumeID, meshName string, objectID uint64, changeStack string) ([]domain.FragmentRef, error) {
	query := url.Values{}
	query.Set("objectId", strconv.FormatUint(objectID, 10))
	query.Set("returnSupervoxelIds", "true")
	if changeStack != "" {
		query.Set("header.changeStackId", changeStack)
	}

	var resp struct {
		SupervoxelID []string `json:"supervoxelId"`
		FragmentKey  []string `json:"fragmentKey"`
	}
	segments := []string{"v1", "objects", volumeID, "meshes", meshName + ":listfragments"}
	if err := r.api.GetJSON(ctx, "meshes.listfragments", segments, query, &resp); err != nil {
		return nil, err
	}

	if len(resp.SupervoxelID) != len(resp.FragmentKey) {
		return nil, fmt.Errorf("fragment listing has %d supervoxel ids but %d keys: %w",
			len(resp.SupervoxelID), len(resp.FragmentKey), domain.ErrUnexpectedResponse)
	}
	if len(resp.FragmentKey) == 0 {
		return nil, fmt.Errorf("object %d: %w", objectID, domain.ErrNoFragments)
	}

	refs := make([]domain.FragmentRef, len(resp.FragmentKey))
	for i := range refs {
		refs[i] = domain.FragmentRef{
			SupervoxelID: resp.SupervoxelID[i],
			FragmentKey:  resp.FragmentKey[i],
		}
	}
	return refs, nil
}

// Volumes returns the IDs of all volumes visible to the caller.
func (r *Repo) Volumes(ctx context.Context) ([]string, error) {
	return cached(r, "volumes", func() ([]string, error) {
		var resp struct {
			VolumeID []string `json:"volumeId"`
		}
		if err := r.api.GetJSON(ctx, "volumes.list", []string{"v1", "volumes"}, nil, &resp); err != nil {
			return nil, err
		}
		return resp.VolumeID, nil
	})
}

// VolumeGeometry returns the per-scale geometry of a volume.
func (r *Repo) VolumeGeometry(ctx context.Context, volumeID string) ([]domain.VolumeGeometry, error) {
	return cached(r, "geometry\x00"+volumeID, func() ([]domain.VolumeGeometry, error) {
		var resp struct {
			Geometry []domain.VolumeGeometry `json:"geometry"`
		}
		if err := r.api.GetJSON(ctx, "volumes.get", []string{"v1", "volumes", volumeID}, nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Geometry) == 0 {
			return nil, fmt.Errorf("volume %s has no geometry: %w", volumeID, domain.ErrUnexpectedResponse)
		}
		return resp.Geometry, nil
	})
}

// Projects returns the project listing.
func (r *Repo) Projects(ctx context.Context) ([]domain.Project, error) {
	return cached(r, "projects", func() ([]domain.Project, error) {
		var resp struct {
			Project []domain.Project `json:"project"`
		}
		if err := r.api.GetJSON(ctx, "projects.list", []string{"v1", "projects"}, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Project, nil
	})
}

// Datasets returns the dataset IDs of a project.
func (r *Repo) Datasets(ctx context.Context, projectID string) ([]string, error) {
	return cached(r, "datasets\x00"+projectID, func() ([]string, error) {
		query := url.Values{}
		query.Set("project_id", projectID)
		var resp struct {
			DatasetIDs []string `json:"datasetIds"`
		}
		if err := r.api.GetJSON(ctx, "datasets.list", []string{"v1", "datasets"}, query, &resp); err != nil {
			return nil, err
		}
		return resp.DatasetIDs, nil
	})
}

// ChangeStacks returns the change stack IDs of a volume.
func (r *Repo) ChangeStacks(ctx context.Context, volumeID string) ([]string, error) {
	return cached(r, "changestacks\x00"+volumeID, func() ([]string, error) {
		var resp struct {
			ChangeStackID []string `json:"changeStackId"`
		}
		segments := []string{"v1", "changes", volumeID, "change_stacks"}
		if err := r.api.GetJSON(ctx, "changes.list", segments, nil, &resp); err != nil {
			return nil, err
		}
		return resp.ChangeStackID, nil
	})
}

// Meshes returns the mesh listings of a volume.
func (r *Repo) Meshes(ctx context.Context, volumeID string) ([]domain.MeshInfo, error) {
	return cached(r, "meshes\x00"+volumeID, func() ([]domain.MeshInfo, error) {
		var resp struct {
			Meshes []domain.MeshInfo `json:"meshes"`
		}
		segments := []string{"v1", "objects", volumeID, "meshes"}
		if err := r.api.GetJSON(ctx, "meshes.list", segments, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Meshes, nil
	})
}

// cached memoizes one listing call by cache key. The stored value is the
// decoded result, shared by later callers; treat it as read-only.
func cached[T any](r *Repo, key string, fetch func() (T, error)) (T, error) {
	if v, ok := r.cache.Get(key); ok {
		metrics.ListingCacheTotal.WithLabelValues("hit").Inc()
		return v.(T), nil
	}
	metrics.ListingCacheTotal.WithLabelValues("miss").Inc()

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	r.cache.Add(key, v)
	r.logger.Debug("listing cached", zap.String("key", key))
	return v, nil
}
