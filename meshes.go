package brainmappy

import (
	"context"

	meshuc "github.com/schlegelp/brainmappy/internal/usecase/mesh"
)

// MeshService fetches object meshes.
type MeshService struct {
	c *Client
}

// MeshOptions override the client defaults for one mesh call. The zero
// value (or nil) uses the defaults.
type MeshOptions struct {
	Volume      string
	MeshName    string
	ChangeStack string
}

// Mesh is a merged object mesh. Face indices point into Vertices.
type Mesh struct {
	Vertices [][3]float32
	Faces    [][3]uint32
}

// Fragment identifies one fetchable mesh fragment.
type Fragment struct {
	SupervoxelID string
	Key          string
}

func (s *MeshService) request(objectID uint64, opts *MeshOptions) (meshuc.Request, error) {
	if opts == nil {
		opts = &MeshOptions{}
	}
	volume, err := s.c.volume(opts.Volume)
	if err != nil {
		return meshuc.Request{}, err
	}
	meshName := opts.MeshName
	if meshName == "" {
		meshName = s.c.meshName
	}
	changeStack := opts.ChangeStack
	if changeStack == "" {
		changeStack = s.c.changeStack
	}
	return meshuc.Request{
		VolumeID:    volume,
		MeshName:    meshName,
		ObjectID:    objectID,
		ChangeStack: changeStack,
	}, nil
}

// Fragments lists the fragments that make up an object's mesh.
func (s *MeshService) Fragments(ctx context.Context, objectID uint64, opts *MeshOptions) ([]Fragment, error) {
	req, err := s.request(objectID, opts)
	if err != nil {
		return nil, err
	}
	refs, err := s.c.meshSvc.Fragments(ctx, req)
	if err != nil {
		return nil, err
	}
	frags := make([]Fragment, len(refs))
	for i, r := range refs {
		frags[i] = Fragment{SupervoxelID: r.SupervoxelID, Key: r.FragmentKey}
	}
	return frags, nil
}

// Get fetches an object's fragments in capped batches and merges them into
// one mesh.
func (s *MeshService) Get(ctx context.Context, objectID uint64, opts *MeshOptions) (*Mesh, error) {
	req, err := s.request(objectID, opts)
	if err != nil {
		return nil, err
	}
	merged, err := s.c.meshSvc.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Mesh{Vertices: merged.Vertices, Faces: merged.Faces}, nil
}
