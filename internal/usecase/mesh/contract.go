package mesh

import (
	"context"

	"github.com/schlegelp/brainmappy/internal/domain"
)

// RawPoster sends a JSON request and returns the raw response body.
type RawPoster interface {
	PostRaw(ctx context.Context, op string, segments []string, body any) ([]byte, error)
}

// FragmentLister supplies the ordered fragment refs of an object.
type FragmentLister interface {
	ListFragments(ctx context.Context, volumeID, meshName string, objectID uint64, changeStack string) ([]domain.FragmentRef, error)
}
