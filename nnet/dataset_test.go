package nnet

import (
	"math/rand"
	"testing"

	"github.com/jnb666/deepres/num"
)

// dataset where each image is filled with its original index
func indexedData(n, classes int) *Dataset {
	x := num.New(n, 2, 2, 1)
	labels := make([]int32, n)
	for i := 0; i < n; i++ {
		for j := range x.Row(i) {
			x.Row(i)[j] = float32(i)
		}
		labels[i] = int32(i % classes)
	}
	d, err := NewDataset(x, num.Onehot(labels, classes))
	if err != nil {
		panic(err)
	}
	return d
}

func TestOneHot(t *testing.T) {
	labels := []int32{0, 3, 9, 3}
	y, err := OneHot(labels, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, label := range labels {
		ones := 0
		for j, v := range y.Row(i) {
			if v == 1 {
				ones++
				if j != int(label) {
					t.Errorf("row %d: 1 at index %d expect %d", i, j, label)
				}
			} else if v != 0 {
				t.Errorf("row %d: invalid value %g", i, v)
			}
		}
		if ones != 1 {
			t.Errorf("row %d: got %d ones", i, ones)
		}
	}
	for i, k := range num.Unhot(y) {
		if k != labels[i] {
			t.Error("round trip: got", k, "expect", labels[i])
		}
	}
	if _, err := OneHot([]int32{10}, 10); err == nil {
		t.Error("expected range error")
	}
}

func TestNewDataset(t *testing.T) {
	if _, err := NewDataset(num.New(3, 2, 2, 1), num.New(4, 10)); err == nil {
		t.Error("expected error for mismatched counts")
	}
	if _, err := NewDataset(num.New(3, 4), num.New(3, 10)); err == nil {
		t.Error("expected error for 2d images")
	}
	d := indexedData(5, 3)
	t.Log(d)
	if d.Len() != 5 || d.Classes() != 3 || !num.SameShape(d.Shape(), []int{2, 2, 1}) {
		t.Error("invalid dataset", d)
	}
}

func TestBatches(t *testing.T) {
	d := indexedData(10, 3)
	for size, expect := range map[int]int{1: 10, 3: 3, 4: 2, 5: 2, 10: 1, 11: 0, 0: 0} {
		if n := d.Batches(size); n != expect {
			t.Errorf("batch size %d: got %d batches expect %d", size, n, expect)
		}
	}
	x, y := d.Batch(2, 3)
	if !num.SameShape(x.Dims(), []int{3, 2, 2, 1}) || !num.SameShape(y.Dims(), []int{3, 3}) {
		t.Fatal("batch dims", x.Dims(), y.Dims())
	}
	if x.Row(0)[0] != 6 || x.Row(2)[0] != 8 {
		t.Error("batch 2 should start at sample 6: got", x.Row(0)[0])
	}
	// last sample is never visited
	seen := make(map[float32]bool)
	for b := 0; b < d.Batches(3); b++ {
		x, _ := d.Batch(b, 3)
		for i := 0; i < 3; i++ {
			seen[x.Row(i)[0]] = true
		}
	}
	if len(seen) != 9 || seen[9] {
		t.Error("expected samples 0-8 to be visited: got", seen)
	}
}

func TestShuffle(t *testing.T) {
	d := indexedData(50, 7)
	rng := rand.New(rand.NewSource(42))
	moved := 0
	for epoch := 0; epoch < 3; epoch++ {
		d.Shuffle(rng)
		seen := make(map[int]bool)
		labels := d.ClassLabels()
		for i := 0; i < d.Len(); i++ {
			orig := int(d.Images.Row(i)[0])
			if seen[orig] {
				t.Fatal("duplicate sample after shuffle", orig)
			}
			seen[orig] = true
			if int(labels[i]) != orig%7 {
				t.Fatalf("epoch %d: image %d has label %d", epoch, orig, labels[i])
			}
			if orig != i {
				moved++
			}
		}
	}
	if moved == 0 {
		t.Error("shuffle did not change order")
	}
}
