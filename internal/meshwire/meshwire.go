// Package meshwire decodes and encodes the neuroglancer-style binary mesh
// stream returned by the objects/meshes:batch endpoint.
//
// A stream is zero or more concatenated fragment records. Each record is
// fixed-width little-endian:
//
//	8 bytes   object id, uint64
//	4 bytes   fragment label length L, int32
//	4 bytes   padding, ignored
//	L bytes   fragment label
//	8 bytes   vertex count V, uint64
//	8 bytes   face count F, uint64
//	V*3*4     vertex coordinates, float32 (x,y,z) tuples
//	F*3*4     face indices, uint32 (a,b,c) tuples
//
// Decoded face indices are fragment-local; offsetting into a merged vertex
// space is the merge step's job.
package meshwire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/schlegelp/brainmappy/internal/domain"
)

var byteOrder = binary.LittleEndian

const (
	vertexWidth = 3 * 4
	faceWidth   = 3 * 4
)

// Decode parses a complete stream into its fragments, consuming every byte.
// A buffer that ends mid-record yields domain.ErrMalformedStream and no
// fragments.
func Decode(data []byte) ([]domain.MeshFragment, error) {
	d := decoder{buf: data}

	var frags []domain.MeshFragment
	for d.off < len(d.buf) {
		frag, err := d.fragment()
		if err != nil {
			return nil, err
		}
		frags = append(frags, frag)
	}
	return frags, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fragment() (domain.MeshFragment, error) {
	var frag domain.MeshFragment

	header, err := d.take(16, "record header")
	if err != nil {
		return frag, err
	}
	frag.ObjectID = byteOrder.Uint64(header)
	labelLen := int32(byteOrder.Uint32(header[8:]))
	if labelLen < 0 {
		return frag, fmt.Errorf("negative label length %d at offset %d: %w",
			labelLen, d.off-16, domain.ErrMalformedStream)
	}
	// header[12:16] is padding.

	label, err := d.take(int(labelLen), "fragment label")
	if err != nil {
		return frag, err
	}
	frag.Label = string(label)

	counts, err := d.take(16, "vertex/face counts")
	if err != nil {
		return frag, err
	}
	nVerts := byteOrder.Uint64(counts)
	nFaces := byteOrder.Uint64(counts[8:])

	vertBytes, err := d.takeN(nVerts, vertexWidth, "vertex data")
	if err != nil {
		return frag, err
	}
	if nVerts > 0 {
		frag.Vertices = make([][3]float32, nVerts)
	}
	for i := range frag.Vertices {
		p := vertBytes[i*vertexWidth:]
		frag.Vertices[i] = [3]float32{
			math.Float32frombits(byteOrder.Uint32(p)),
			math.Float32frombits(byteOrder.Uint32(p[4:])),
			math.Float32frombits(byteOrder.Uint32(p[8:])),
		}
	}

	faceBytes, err := d.takeN(nFaces, faceWidth, "face data")
	if err != nil {
		return frag, err
	}
	if nFaces > 0 {
		frag.Faces = make([][3]uint32, nFaces)
	}
	for i := range frag.Faces {
		p := faceBytes[i*faceWidth:]
		frag.Faces[i] = [3]uint32{
			byteOrder.Uint32(p),
			byteOrder.Uint32(p[4:]),
			byteOrder.Uint32(p[8:]),
		}
	}

	return frag, nil
}

// take consumes exactly n bytes from the stream.
func (d *decoder) take(n int, field string) ([]byte, error) {
	if len(d.buf)-d.off < n {
		return nil, fmt.Errorf("%s needs %d bytes, %d remain at offset %d: %w",
			field, n, len(d.buf)-d.off, d.off, domain.ErrMalformedStream)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// takeN consumes count elements of the given width, guarding the
// count*width multiplication against declared counts that overflow or
// exceed the buffer.
func (d *decoder) takeN(count uint64, width int, field string) ([]byte, error) {
	remain := uint64(len(d.buf) - d.off)
	if count > remain/uint64(width) {
		return nil, fmt.Errorf("%s declares %d elements, %d bytes remain at offset %d: %w",
			field, count, remain, d.off, domain.ErrMalformedStream)
	}
	return d.take(int(count)*width, field)
}

// AppendFragment encodes one fragment record onto buf and returns the
// extended buffer.
func AppendFragment(buf []byte, frag *domain.MeshFragment) []byte {
	buf = byteOrder.AppendUint64(buf, frag.ObjectID)
	buf = byteOrder.AppendUint32(buf, uint32(int32(len(frag.Label))))
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, frag.Label...)
	buf = byteOrder.AppendUint64(buf, uint64(len(frag.Vertices)))
	buf = byteOrder.AppendUint64(buf, uint64(len(frag.Faces)))
	for _, v := range frag.Vertices {
		buf = byteOrder.AppendUint32(buf, math.Float32bits(v[0]))
		buf = byteOrder.AppendUint32(buf, math.Float32bits(v[1]))
		buf = byteOrder.AppendUint32(buf, math.Float32bits(v[2]))
	}
	for _, f := range frag.Faces {
		buf = byteOrder.AppendUint32(buf, f[0])
		buf = byteOrder.AppendUint32(buf, f[1])
		buf = byteOrder.AppendUint32(buf, f[2])
	}
	return buf
}
