package brainmappy

import (
	"context"

	seguc "github.com/schlegelp/brainmappy/internal/usecase/segmentation"
)

// SegmentationService looks up segment labels at spatial coordinates.
type SegmentationService struct {
	c *Client
}

// LocationOptions override the client defaults for one lookup.
type LocationOptions struct {
	Volume string
	// RawCoords marks the coordinates as already voxel-native; no voxel
	// size conversion is applied.
	RawCoords bool
	// VoxelSize converts physical coordinates to voxel units. When nil and
	// RawCoords is false, the voxel size is read from the volume geometry.
	VoxelSize   *[3]float64
	ChangeStack string
}

// AtLocations returns the segment label at each coordinate, in input order.
// Label 0 means the location is unmapped.
func (s *SegmentationService) AtLocations(ctx context.Context, coords [][3]float64, opts *LocationOptions) ([]uint64, error) {
	if opts == nil {
		opts = &LocationOptions{}
	}
	volume, err := s.c.volume(opts.Volume)
	if err != nil {
		return nil, err
	}
	changeStack := opts.ChangeStack
	if changeStack == "" {
		changeStack = s.c.changeStack
	}
	return s.c.segSvc.Lookup(ctx, seguc.Request{
		VolumeID:    volume,
		Coords:      coords,
		RawCoords:   opts.RawCoords,
		VoxelSize:   opts.VoxelSize,
		ChangeStack: changeStack,
	})
}
