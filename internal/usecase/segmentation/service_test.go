package segmentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/schlegelp/brainmappy/internal/domain"
)

// --- Mocks ---

type postedChunk struct {
	locations   []string
	changeStack string
}

type mockPoster struct {
	mu     sync.Mutex
	calls  int
	chunks []postedChunk

	// labels maps a "x,y,z" location to its segment id; absent means 0.
	labels map[string]uint64
	// failFirst makes the first n calls fail with a 500.
	failFirst int
	// payload, when set, is returned verbatim instead of built labels.
	payload string
}

func (m *mockPoster) PostJSON(_ context.Context, _ string, _ []string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var req struct {
		Locations  []string `json:"locations"`
		ChangeSpec *struct {
			ChangeStackID string `json:"change_stack_id"`
		} `json:"change_spec"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}

	m.mu.Lock()
	m.calls++
	call := m.calls
	chunk := postedChunk{locations: req.Locations}
	if req.ChangeSpec != nil {
		chunk.changeStack = req.ChangeSpec.ChangeStackID
	}
	m.chunks = append(m.chunks, chunk)
	m.mu.Unlock()

	if call <= m.failFirst {
		return domain.NewStatusError(500, "transient")
	}

	payload := m.payload
	if payload == "" {
		values := make([]string, len(req.Locations))
		for i, loc := range req.Locations {
			values[i] = fmt.Sprintf("%d", m.labels[loc])
		}
		payload = fmt.Sprintf(`{"uint64StrList":{"values":["%s"]}}`, strings.Join(values, `","`))
		if len(values) == 0 {
			payload = `{"uint64StrList":{"values":[]}}`
		}
	}
	return json.Unmarshal([]byte(payload), out)
}

func (m *mockPoster) chunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

type mockGeometry struct {
	size  [3]float64
	err   error
	calls int
}

func (m *mockGeometry) VolumeGeometry(_ context.Context, _ string) ([]domain.VolumeGeometry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []domain.VolumeGeometry{{
		PixelSize: domain.Extent3{X: m.size[0], Y: m.size[1], Z: m.size[2]},
	}}, nil
}

func TestLookup_ScattersInOriginalOrder(t *testing.T) {
	poster := &mockPoster{labels: map[string]uint64{
		"0,0,0":    5,
		"10,10,10": 7,
	}}
	size := [3]float64{1, 1, 1}
	svc := New(poster, &mockGeometry{}, nil).WithChunkSize(2)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID:  "vol",
		Coords:    [][3]float64{{0, 0, 0}, {10, 10, 10}, {20, 20, 20}},
		VoxelSize: &size,
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	want := []uint64{5, 7, 0} // third location unmapped
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if poster.chunkCount() < 2 {
		t.Fatalf("dispatched %d chunks for 3 coords at cap 2, want at least 2", poster.chunkCount())
	}
}

func TestLookup_ChunksNeverExceedCap(t *testing.T) {
	var coords [][3]float64
	for i := 0; i < 450; i++ {
		// Three widely separated blocks so clustering has work to do.
		base := float64((i % 3) * 100000)
		coords = append(coords, [3]float64{base + float64(i), float64(i % 17), float64(i % 5)})
	}

	poster := &mockPoster{}
	svc := New(poster, &mockGeometry{}, nil)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: coords, RawCoords: true,
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != len(coords) {
		t.Fatalf("result length %d, want %d", len(got), len(coords))
	}

	total := 0
	for _, c := range poster.chunks {
		if len(c.locations) > MaxChunkSize {
			t.Fatalf("chunk of %d locations exceeds cap %d", len(c.locations), MaxChunkSize)
		}
		total += len(c.locations)
	}
	if total != len(coords) {
		t.Fatalf("dispatched %d locations, want %d", total, len(coords))
	}
}

func TestLookup_ConcurrencyPreservesOrder(t *testing.T) {
	var coords [][3]float64
	labels := map[string]uint64{}
	for i := 0; i < 517; i++ {
		x := float64((i * 37) % 1000)
		y := float64((i * 59) % 1000)
		z := float64((i * 73) % 1000)
		coords = append(coords, [3]float64{x, y, z})
		labels[fmt.Sprintf("%d,%d,%d", int(x), int(y), int(z))] = uint64(i * 13)
	}

	serial := New(&mockPoster{labels: labels}, &mockGeometry{}, nil).WithChunkSize(50)
	concurrent := New(&mockPoster{labels: labels}, &mockGeometry{}, nil).WithChunkSize(50).WithWorkers(8)

	req := Request{VolumeID: "vol", Coords: coords, RawCoords: true}
	want, err := serial.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("serial Lookup: %v", err)
	}
	got, err := concurrent.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("concurrent Lookup: %v", err)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order broken at %d: serial %d, concurrent %d", i, want[i], got[i])
		}
	}
}

func TestLookup_RetriesTransportFailures(t *testing.T) {
	poster := &mockPoster{failFirst: 2, labels: map[string]uint64{"1,1,1": 9}}
	svc := New(poster, &mockGeometry{}, nil).WithMaxAttempts(5)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 1, 1}}, RawCoords: true,
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got[0] != 9 {
		t.Fatalf("label = %d, want 9", got[0])
	}
	if poster.calls != 3 {
		t.Fatalf("calls = %d, want 3 (two failures, one success)", poster.calls)
	}
}

func TestLookup_FailsAfterRetryBudget(t *testing.T) {
	poster := &mockPoster{failFirst: 1 << 20}
	svc := New(poster, &mockGeometry{}, nil).WithMaxAttempts(3)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 1, 1}}, RawCoords: true,
	})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if got != nil {
		t.Fatal("partial result returned on failure")
	}
	if poster.calls != 3 {
		t.Fatalf("calls = %d, want exactly the attempt budget of 3", poster.calls)
	}
}

func TestLookup_MissingLabelListIsFatal(t *testing.T) {
	poster := &mockPoster{payload: `{"error":"no such volume"}`}
	svc := New(poster, &mockGeometry{}, nil)

	_, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 1, 1}}, RawCoords: true,
	})
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
	// A shape error is deterministic; retrying it is pointless.
	if poster.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on shape errors)", poster.calls)
	}
}

func TestLookup_LabelCountMismatchIsFatal(t *testing.T) {
	poster := &mockPoster{payload: `{"uint64StrList":{"values":["1","2","3"]}}`}
	svc := New(poster, &mockGeometry{}, nil)

	_, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 1, 1}}, RawCoords: true,
	})
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestLookup_NonNumericLabelIsFatal(t *testing.T) {
	poster := &mockPoster{payload: `{"uint64StrList":{"values":["abc"]}}`}
	svc := New(poster, &mockGeometry{}, nil)

	_, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 1, 1}}, RawCoords: true,
	})
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestLookup_DiscoversVoxelSize(t *testing.T) {
	poster := &mockPoster{labels: map[string]uint64{"2,2,1": 11}}
	geom := &mockGeometry{size: [3]float64{4, 4, 40}}
	svc := New(poster, geom, nil)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{8, 8, 40}},
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if geom.calls != 1 {
		t.Fatalf("geometry consulted %d times, want 1", geom.calls)
	}
	if got[0] != 11 {
		t.Fatalf("label = %d, want 11 (voxel size not applied?)", got[0])
	}
}

func TestLookup_ExplicitVoxelSizeSkipsDiscovery(t *testing.T) {
	poster := &mockPoster{}
	geom := &mockGeometry{err: errors.New("should not be called")}
	size := [3]float64{2, 2, 2}
	svc := New(poster, geom, nil)

	if _, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{4, 4, 4}}, VoxelSize: &size,
	}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if geom.calls != 0 {
		t.Fatal("geometry consulted despite explicit voxel size")
	}
	if poster.chunks[0].locations[0] != "2,2,2" {
		t.Fatalf("location = %q, want 2,2,2", poster.chunks[0].locations[0])
	}
}

func TestLookup_EmptyCoords(t *testing.T) {
	poster := &mockPoster{}
	svc := New(poster, &mockGeometry{}, nil)

	got, err := svc.Lookup(context.Background(), Request{VolumeID: "vol"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v for no coords", got)
	}
	if poster.calls != 0 {
		t.Fatalf("issued %d requests for no coords", poster.calls)
	}
}

func TestLookup_ChangeStackRidesAlong(t *testing.T) {
	poster := &mockPoster{}
	svc := New(poster, &mockGeometry{}, nil)

	if _, err := svc.Lookup(context.Background(), Request{
		VolumeID: "vol", Coords: [][3]float64{{1, 2, 3}}, RawCoords: true,
		ChangeStack: "agglo-v2",
	}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if poster.chunks[0].changeStack != "agglo-v2" {
		t.Fatalf("change stack = %q, want agglo-v2", poster.chunks[0].changeStack)
	}
}

func TestLookup_DuplicateCoordinates(t *testing.T) {
	poster := &mockPoster{labels: map[string]uint64{"5,5,5": 77}}
	svc := New(poster, &mockGeometry{}, nil).WithChunkSize(2)

	got, err := svc.Lookup(context.Background(), Request{
		VolumeID:  "vol",
		Coords:    [][3]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}},
		RawCoords: true,
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	for i, v := range got {
		if v != 77 {
			t.Fatalf("duplicate coord %d got label %d, want 77", i, v)
		}
	}
}
