package num

import (
	"fmt"
	"strings"
)

// Parameters for array printing
var (
	PrintThreshold = 12
	PrintEdgeitems = 4
)

// Array is an n dimensional float32 tensor similar to a numpy ndarray.
// Data is stored in row major order, so a batch of images has shape [N,H,W,C]
// with the channel index varying fastest.
type Array struct {
	Data []float32
	dims []int
}

// New allocates a new zeroed array with the given shape.
func New(dims ...int) *Array {
	return &Array{Data: make([]float32, Prod(dims)), dims: append([]int{}, dims...)}
}

// FromSlice wraps an existing slice, which must have Prod(dims) elements.
func FromSlice(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("FromSlice: have %d elements for shape %v", len(data), dims))
	}
	return &Array{Data: data, dims: append([]int{}, dims...)}
}

// NewLike allocates a zeroed array with the same shape as a.
func NewLike(a *Array) *Array {
	return New(a.dims...)
}

// Reuse returns a if it is non nil and already has the requested shape, else a new array.
// Contents are not cleared.
func Reuse(a *Array, dims ...int) *Array {
	if a != nil && SameShape(a.dims, dims) {
		return a
	}
	return New(dims...)
}

// Dims returns the shape of the array.
func (a *Array) Dims() []int { return a.dims }

// Size is total number of elements
func (a *Array) Size() int { return len(a.Data) }

// Reshape returns a view on the same data with a different shape. One dimension may be -1.
func (a *Array) Reshape(dims ...int) *Array {
	dims = append([]int{}, dims...)
	n := len(a.Data)
	for i := range dims {
		if dims[i] == -1 {
			other := 1
			for j, dim := range dims {
				if i != j {
					if dim == -1 {
						panic("Reshape: can only have single -1 value")
					}
					other *= dim
				}
			}
			dims[i] = n / other
		}
	}
	if Prod(dims) != n {
		panic(fmt.Sprintf("Reshape: %v must be to array of same size as %v", dims, a.dims))
	}
	return &Array{Data: a.Data, dims: dims}
}

// Slice returns a view on rows [start, end) along the first dimension.
func (a *Array) Slice(start, end int) *Array {
	if len(a.dims) == 0 || start < 0 || end > a.dims[0] || start > end {
		panic(fmt.Sprintf("Slice: range [%d:%d] invalid for shape %v", start, end, a.dims))
	}
	stride := Prod(a.dims[1:])
	dims := append([]int{end - start}, a.dims[1:]...)
	return &Array{Data: a.Data[start*stride : end*stride], dims: dims}
}

// Row returns the elements of the i'th entry along the first dimension.
func (a *Array) Row(i int) []float32 {
	stride := Prod(a.dims[1:])
	return a.Data[i*stride : (i+1)*stride]
}

// Copy returns a deep copy of the array.
func (a *Array) Copy() *Array {
	b := New(a.dims...)
	copy(b.Data, a.Data)
	return b
}

// Fill sets every element to val.
func (a *Array) Fill(val float32) *Array {
	for i := range a.Data {
		a.Data[i] = val
	}
	return a
}

// String gives a formatted representation, eliding the middle of large dimensions.
func (a *Array) String() string {
	if len(a.dims) == 0 {
		return format(nil, a.Data, 0, 1, "", false)
	}
	return format(a.dims, a.Data, 0, Prod(a.dims[1:]), "", false)
}

func format(dims []int, data []float32, at, stride int, indent string, dots bool) string {
	switch len(dims) {
	case 0:
		if dots {
			return "    ... "
		}
		val := data[at]
		if abs(val) < 1 {
			val = float32(int(10000*val+0.5)) / 10000
		}
		return fmt.Sprintf("%7.5g ", val)
	case 1:
		s := "["
		for i := 0; i < dims[0]; i++ {
			dots2 := dims[0] > PrintThreshold+1 && i == PrintEdgeitems
			s += format(nil, data, at+i*stride, 1, "", dots || dots2)
			if dots2 {
				i = dims[0] - PrintEdgeitems - 1
			}
		}
		return s + "]"
	default:
		var b strings.Builder
		b.WriteString(indent + "[\n")
		inner := 1
		if len(dims) > 2 {
			inner = Prod(dims[2:])
		}
		for i := 0; i < dims[0]; i++ {
			if dims[0] > PrintThreshold+1 && i == PrintEdgeitems {
				b.WriteString(indent + "   ...  ...   \n")
				i = dims[0] - PrintEdgeitems - 1
				continue
			}
			if len(dims) == 2 {
				b.WriteString(indent + " " + format(dims[1:], data, at+i*stride, 1, "", false) + "\n")
			} else {
				b.WriteString(format(dims[1:], data, at+i*stride, inner, indent+" ", false))
			}
		}
		b.WriteString(indent + "]\n")
		return b.String()
	}
}

func abs(x float32) float32 {
	if x >= 0 {
		return x
	}
	return -x
}

// Product of elements of an integer array. Zero dimension array (scalar) has size 1.
func Prod(arr []int) int {
	prod := 1
	for _, v := range arr {
		prod *= v
	}
	return prod
}

// Check if two arrays are the same shape
func SameShape(xd, yd []int) bool {
	if len(xd) != len(yd) {
		return false
	}
	for i := range xd {
		if xd[i] != yd[i] {
			return false
		}
	}
	return true
}

// Total size of one of more arrays in bytes
func Bytes(arr ...*Array) (bytes int) {
	for _, a := range arr {
		if a != nil {
			bytes += 4 * a.Size()
		}
	}
	return bytes
}
