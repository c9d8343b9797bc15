package cluster

import "testing"

func TestAssign_TrivialCases(t *testing.T) {
	points := [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}

	labels := Assign(points, 1, 0)
	for i, l := range labels {
		if l != 0 {
			t.Fatalf("k=1: label[%d] = %d, want 0", i, l)
		}
	}

	labels = Assign(points, 5, 0)
	seen := map[int]bool{}
	for i, l := range labels {
		if l < 0 || l >= 5 {
			t.Fatalf("k>=n: label[%d] = %d out of range", i, l)
		}
		if seen[l] {
			t.Fatalf("k>=n: label %d assigned twice", l)
		}
		seen[l] = true
	}

	if got := Assign(nil, 3, 0); len(got) != 0 {
		t.Fatalf("empty input produced %d labels", len(got))
	}
}

func TestAssign_SeparatesDistantBlobs(t *testing.T) {
	var points [][3]float64
	for i := 0; i < 20; i++ {
		points = append(points, [3]float64{float64(i % 3), float64(i % 5), float64(i % 2)})
	}
	for i := 0; i < 20; i++ {
		points = append(points, [3]float64{1000 + float64(i%3), 1000 + float64(i%5), float64(i % 2)})
	}

	labels := Assign(points, 2, 0)

	blobA := labels[0]
	for i := 1; i < 20; i++ {
		if labels[i] != blobA {
			t.Fatalf("first blob split: label[%d] = %d, want %d", i, labels[i], blobA)
		}
	}
	blobB := labels[20]
	if blobB == blobA {
		t.Fatal("both blobs collapsed into one cluster")
	}
	for i := 21; i < 40; i++ {
		if labels[i] != blobB {
			t.Fatalf("second blob split: label[%d] = %d, want %d", i, labels[i], blobB)
		}
	}
}

func TestAssign_Deterministic(t *testing.T) {
	var points [][3]float64
	for i := 0; i < 100; i++ {
		points = append(points, [3]float64{
			float64((i * 37) % 101),
			float64((i * 59) % 103),
			float64((i * 73) % 107),
		})
	}

	first := Assign(points, 4, 0)
	second := Assign(points, 4, 0)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("assignment not deterministic at %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestAssign_LabelsInRange(t *testing.T) {
	var points [][3]float64
	for i := 0; i < 57; i++ {
		points = append(points, [3]float64{float64(i), float64(i * i % 13), 0})
	}
	k := 7
	labels := Assign(points, k, 0)
	if len(labels) != len(points) {
		t.Fatalf("got %d labels for %d points", len(labels), len(points))
	}
	for i, l := range labels {
		if l < 0 || l >= k {
			t.Fatalf("label[%d] = %d outside [0, %d)", i, l, k)
		}
	}
}
