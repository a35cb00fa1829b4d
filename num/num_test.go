package num

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestArray(t *testing.T) {
	xd := []float32{1, 1, 2, 2, 3, 3}
	x := FromSlice(xd, 6)
	x = x.Reshape(2, -1)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	if row := x.Row(1); !reflect.DeepEqual(row, []float32{2, 3, 3}) {
		t.Error("row: got", row)
	}
	s := x.Slice(1, 2)
	if dim := s.Dims(); !reflect.DeepEqual(dim, []int{1, 3}) {
		t.Error("slice dims invalid: got", dim)
	}
	s.Fill(9)
	expect := []float32{1, 1, 2, 9, 9, 9}
	if !reflect.DeepEqual(x.Data, expect) {
		t.Error("got", x.Data, "expect", expect)
	}
	y := x.Copy()
	y.Data[0] = 5
	if x.Data[0] != 1 {
		t.Error("copy shares data with source")
	}
	if Reuse(x, 2, 3) != x || Reuse(x, 3, 2) == x {
		t.Error("reuse mismatch")
	}
	t.Logf("x\n%s", x)
}

func TestOnehot(t *testing.T) {
	vec := []int32{2, 1, 0, 2}
	y1h := Onehot(vec, 3)
	t.Logf("y1hot\n%s", y1h)
	expect := []float32{0, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 1}
	if !reflect.DeepEqual(y1h.Data, expect) {
		t.Error("got", y1h.Data, "expect", expect)
	}
	if res := Unhot(y1h); !reflect.DeepEqual(res, vec) {
		t.Error("got", res, "expect", vec)
	}
}

func TestOnehotRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out of range label")
		}
	}()
	Onehot([]int32{0, 10}, 10)
}

func TestAxpy(t *testing.T) {
	x := FromSlice([]float32{1, 1, 2, 2, 3, 3}, 2, 3)
	y := New(2, 3).Fill(0.5)
	Axpy(2, x, y)
	expect := []float32{2.5, 2.5, 4.5, 4.5, 6.5, 6.5}
	if !reflect.DeepEqual(y.Data, expect) {
		t.Error("got", y.Data, "expect", expect)
	}
	Scale(2, y)
	if y.Data[0] != 5 {
		t.Error("scale: got", y.Data[0])
	}
	if d := Dot(x, x); d != 28 {
		t.Error("dot: got", d, "expect", 28)
	}
	if s := Sum(x); s != 12 {
		t.Error("sum: got", s, "expect", 12)
	}
}

func TestGemm(t *testing.T) {
	x := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	z := New(2, 2)
	expect := []float32{58, 64, 139, 154}
	for _, trans := range []TransType{NoTrans, Trans} {
		var y *Array
		if trans == Trans {
			y = FromSlice([]float32{7, 9, 11, 8, 10, 12}, 2, 3)
		} else {
			y = FromSlice([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
		}
		Gemm(1, 0, x, y, z, NoTrans, trans)
		if !reflect.DeepEqual(z.Data, expect) {
			t.Error("got", z.Data, "expect", expect)
		}
	}
}

func TestRelu(t *testing.T) {
	x := FromSlice([]float32{-1, 2, 0, 3}, 4)
	y := NewLike(x)
	Relu(x, y)
	if !reflect.DeepEqual(y.Data, []float32{0, 2, 0, 3}) {
		t.Error("relu: got", y.Data)
	}
	dx := NewLike(x)
	ReluD(y, FromSlice([]float32{1, 1, 1, 1}, 4), dx)
	if !reflect.DeepEqual(dx.Data, []float32{0, 1, 0, 1}) {
		t.Error("relu grad: got", dx.Data)
	}
}

func TestSoftmaxLoss(t *testing.T) {
	x := FromSlice([]float32{0, 0, 0, 0, 10, 0}, 2, 3)
	y := Onehot([]int32{1, 1}, 3)
	grad := NewLike(x)
	loss := SoftmaxLoss(x, y, grad)
	// first row is uniform, second is almost certainly correct
	expect := (math.Log(3) + math.Log(1+2*math.Exp(-10))) / 2
	if math.Abs(loss-expect) > 1e-5 {
		t.Error("loss: got", loss, "expect", expect)
	}
	for i := 0; i < 2; i++ {
		var sum float32
		for _, v := range grad.Row(i) {
			sum += v
		}
		if abs(sum) > 1e-6 {
			t.Error("gradient row should sum to zero: got", sum)
		}
	}
	if acc := Accuracy(x, y); acc != 0.5 {
		t.Error("accuracy: got", acc, "expect", 0.5)
	}
}

func TestDevice(t *testing.T) {
	for id, workers := range map[string]int{"cpu:3": 3, "CPU:1": 1} {
		dev, err := NewDevice(id)
		if err != nil || dev.Workers != workers {
			t.Error(id, "got", dev, err)
		}
	}
	for _, id := range []string{"gpu", "cpu:0", "cpu:x"} {
		if _, err := NewDevice(id); err == nil {
			t.Error(id, "expected error")
		}
	}
	counts := make([]int, 10)
	CPU(4).Parallel(len(counts), func(w, i int) {
		if i%4 != w {
			t.Errorf("item %d given to worker %d", i, w)
		}
		counts[i]++
	})
	for i, n := range counts {
		if n != 1 {
			t.Errorf("item %d called %d times", i, n)
		}
	}
}

func randArray(rng *rand.Rand, min, max float32, dims ...int) *Array {
	a := New(dims...)
	for i := range a.Data {
		a.Data[i] = min + rng.Float32()*(max-min)
	}
	return a
}

func BenchmarkGemm(b *testing.B) {
	size := 100
	rng := rand.New(rand.NewSource(42))
	x := randArray(rng, 0, 20, size, size)
	y := randArray(rng, 0, 20, size, size)
	z := New(size, size)
	for i := 0; i < b.N; i++ {
		Gemm(1, 0, x, y, z, NoTrans, NoTrans)
	}
}
