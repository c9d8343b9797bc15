package domain

// Extent3 is a per-axis size in the service's volume geometry JSON.
type Extent3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VolumeGeometry describes one scale of a segmentation volume.
type VolumeGeometry struct {
	VolumeSize   Extent3 `json:"volumeSize"`
	ChannelCount int     `json:"channelCount"`
	ChannelType  string  `json:"channelType"`
	PixelSize    Extent3 `json:"pixelSize"`
}

// VoxelSize returns the physical size of one voxel at this scale.
func (g VolumeGeometry) VoxelSize() [3]float64 {
	return [3]float64{g.PixelSize.X, g.PixelSize.Y, g.PixelSize.Z}
}

// Project is one entry of the project listing.
type Project struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MeshInfo is one entry of a volume's mesh listing.
type MeshInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
