package segmentation

import (
	"context"

	"github.com/schlegelp/brainmappy/internal/domain"
)

// Poster sends a JSON request and decodes the JSON response.
type Poster interface {
	PostJSON(ctx context.Context, op string, segments []string, body, out any) error
}

// GeometryReader supplies volume geometry for voxel size discovery.
type GeometryReader interface {
	VolumeGeometry(ctx context.Context, volumeID string) ([]domain.VolumeGeometry, error)
}
