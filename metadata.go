package brainmappy

import (
	"context"
)

// MetadataService exposes the read-only listing endpoints. Results are
// memoized in a bounded cache inside the client; call InvalidateCache to
// force fresh listings.
type MetadataService struct {
	c *Client
}

// Project is one entry of the project listing.
type Project struct {
	ID    string
	Label string
}

// MeshListing is one entry of a volume's mesh listing.
type MeshListing struct {
	Name string
	Type string
}

// VolumeScale describes one scale of a volume's geometry.
type VolumeScale struct {
	VolumeSize   [3]float64
	ChannelCount int
	ChannelType  string
	PixelSize    [3]float64
}

// Volumes lists the IDs of all visible volumes.
func (s *MetadataService) Volumes(ctx context.Context) ([]string, error) {
	return s.c.listing.Volumes(ctx)
}

// VolumeGeometry lists the per-scale geometry of a volume.
func (s *MetadataService) VolumeGeometry(ctx context.Context, volumeID string) ([]VolumeScale, error) {
	volume, err := s.c.volume(volumeID)
	if err != nil {
		return nil, err
	}
	geom, err := s.c.listing.VolumeGeometry(ctx, volume)
	if err != nil {
		return nil, err
	}
	scales := make([]VolumeScale, len(geom))
	for i, g := range geom {
		scales[i] = VolumeScale{
			VolumeSize:   [3]float64{g.VolumeSize.X, g.VolumeSize.Y, g.VolumeSize.Z},
			ChannelCount: g.ChannelCount,
			ChannelType:  g.ChannelType,
			PixelSize:    g.VoxelSize(),
		}
	}
	return scales, nil
}

// VoxelSize returns the voxel size of a volume's first (full-resolution)
// scale.
func (s *MetadataService) VoxelSize(ctx context.Context, volumeID string) ([3]float64, error) {
	scales, err := s.VolumeGeometry(ctx, volumeID)
	if err != nil {
		return [3]float64{}, err
	}
	return scales[0].PixelSize, nil
}

// Projects lists all projects.
func (s *MetadataService) Projects(ctx context.Context) ([]Project, error) {
	projects, err := s.c.listing.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Project, len(projects))
	for i, p := range projects {
		out[i] = Project{ID: p.ID, Label: p.Label}
	}
	return out, nil
}

// Datasets lists the dataset IDs of a project.
func (s *MetadataService) Datasets(ctx context.Context, projectID string) ([]string, error) {
	return s.c.listing.Datasets(ctx, projectID)
}

// ChangeStacks lists the change stack IDs of a volume.
func (s *MetadataService) ChangeStacks(ctx context.Context, volumeID string) ([]string, error) {
	volume, err := s.c.volume(volumeID)
	if err != nil {
		return nil, err
	}
	return s.c.listing.ChangeStacks(ctx, volume)
}

// Meshes lists the available mesh resolutions of a volume.
func (s *MetadataService) Meshes(ctx context.Context, volumeID string) ([]MeshListing, error) {
	volume, err := s.c.volume(volumeID)
	if err != nil {
		return nil, err
	}
	meshes, err := s.c.listing.Meshes(ctx, volume)
	if err != nil {
		return nil, err
	}
	out := make([]MeshListing, len(meshes))
	for i, m := range meshes {
		out[i] = MeshListing{Name: m.Name, Type: m.Type}
	}
	return out, nil
}

// InvalidateCache drops all memoized listings.
func (s *MetadataService) InvalidateCache() {
	s.c.listing.Invalidate()
}
