package num

import (
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNpy(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "weights.npy")
	x := FromSlice([]float32{1.5, -2, 3, 0.25, 5, 6}, 2, 3)
	if err := SaveNpy(file, x); err != nil {
		t.Fatal(err)
	}
	y, err := LoadNpy(file)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(y.Data, x.Data) {
		t.Error("got", y.Data, "expect", x.Data)
	}
	if !reflect.DeepEqual(y.Dims(), []int{2, 3}) {
		t.Error("dims: got", y.Dims())
	}

	x = randArray(rand.New(rand.NewSource(1)), -1, 1, 3, 3, 2, 4)
	file = filepath.Join(dir, "filter.npy")
	if err := SaveNpy(file, x); err != nil {
		t.Fatal(err)
	}
	if y, err = LoadNpy(file); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(y.Dims(), []int{3, 3, 2, 4}) || !reflect.DeepEqual(y.Data, x.Data) {
		t.Error("4d array: got dims", y.Dims())
	}

	file = filepath.Join(dir, "labels.npy")
	if err := SaveNpyBytes(file, []uint8{3, 0, 9}); err != nil {
		t.Fatal(err)
	}
	labels, err := LoadNpy(file)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(labels.Data, []float32{3, 0, 9}) || !reflect.DeepEqual(labels.Dims(), []int{3}) {
		t.Error("labels: got", labels.Data, labels.Dims())
	}

	file = filepath.Join(dir, "images.npy")
	pix := []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255}
	if err := SaveNpyBytes(file, pix, 1, 2, 2, 3); err != nil {
		t.Fatal(err)
	}
	if y, err = LoadNpy(file); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(y.Dims(), []int{1, 2, 2, 3}) || y.Data[11] != 255 {
		t.Error("images: got", y.Dims(), y.Data)
	}
	if err := SaveNpyBytes(file, pix, 5, 5); err == nil {
		t.Error("expected error for shape mismatch")
	}

	if _, err := LoadNpy(filepath.Join(dir, "missing.npy")); err == nil {
		t.Error("expected error for missing file")
	}
}
