package domain

import "fmt"

// FragmentRef identifies one independently fetchable piece of an object's
// mesh: the supervoxel that owns it and the fragment key within that
// supervoxel. IDs are decimal strings as delivered by the service (proto3
// JSON encodes uint64 as string).
type FragmentRef struct {
	SupervoxelID string
	FragmentKey  string
}

// MeshFragment is one decoded record from the binary mesh stream.
// Face indices are fragment-local: they index into this fragment's own
// Vertices and carry no merge offset.
type MeshFragment struct {
	ObjectID uint64
	Label    string
	Vertices [][3]float32
	Faces    [][3]uint32
}

// MergedMesh accumulates fragments of one object into a single vertex/face
// buffer. Faces are re-indexed into the merged vertex space as fragments are
// appended.
type MergedMesh struct {
	Vertices [][3]float32
	Faces    [][3]uint32
}

// Append merges a fragment, shifting its face indices by the vertex count
// accumulated so far. A face index outside the fragment's own vertex range
// means the stream was inconsistent.
func (m *MergedMesh) Append(frag *MeshFragment) error {
	local := uint32(len(frag.Vertices))
	for _, f := range frag.Faces {
		for _, idx := range f {
			if idx >= local {
				return fmt.Errorf("face index %d out of range for fragment with %d vertices: %w",
					idx, local, ErrMalformedStream)
			}
		}
	}

	offset := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, frag.Vertices...)
	for _, f := range frag.Faces {
		m.Faces = append(m.Faces, [3]uint32{f[0] + offset, f[1] + offset, f[2] + offset})
	}
	return nil
}
