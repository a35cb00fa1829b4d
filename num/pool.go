package num

import "fmt"

// AvgPool averages non-overlapping size x size windows of the [N,H,W,C] input x into y.
// Trailing rows or columns that do not fill a window are dropped.
func AvgPool(x, y *Array, size int) {
	n, h, w, c := dims4(x)
	oh, ow := h/size, w/size
	if !SameShape(y.Dims(), []int{n, oh, ow, c}) {
		panic(fmt.Sprintf("AvgPool: output shape %v invalid for input %v", y.Dims(), x.Dims()))
	}
	scale := 1 / float32(size*size)
	clear(y.Data)
	for b := 0; b < n; b++ {
		src, dst := x.Row(b), y.Row(b)
		for iy := 0; iy < oh*size; iy++ {
			for ix := 0; ix < ow*size; ix++ {
				in := src[(iy*w+ix)*c : (iy*w+ix+1)*c]
				out := dst[((iy/size)*ow+ix/size)*c : ((iy/size)*ow+ix/size+1)*c]
				for ch, v := range in {
					out[ch] += v * scale
				}
			}
		}
	}
}

// AvgPoolD spreads the output gradient dy evenly back over each pooling window into dx.
func AvgPoolD(dy, dx *Array, size int) {
	n, h, w, c := dims4(dx)
	oh, ow := h/size, w/size
	scale := 1 / float32(size*size)
	clear(dx.Data)
	for b := 0; b < n; b++ {
		src, dst := dy.Row(b), dx.Row(b)
		for iy := 0; iy < oh*size; iy++ {
			for ix := 0; ix < ow*size; ix++ {
				grad := src[((iy/size)*ow+ix/size)*c : ((iy/size)*ow+ix/size+1)*c]
				out := dst[(iy*w+ix)*c : (iy*w+ix+1)*c]
				for ch, v := range grad {
					out[ch] = v * scale
				}
			}
		}
	}
}

// GlobalAvgPool reduces [N,H,W,C] to [N,C] by averaging over the spatial dimensions.
func GlobalAvgPool(x, y *Array) {
	n, h, w, c := dims4(x)
	if !SameShape(y.Dims(), []int{n, c}) {
		panic(fmt.Sprintf("GlobalAvgPool: output shape %v invalid for input %v", y.Dims(), x.Dims()))
	}
	scale := 1 / float32(h*w)
	clear(y.Data)
	for b := 0; b < n; b++ {
		src, dst := x.Row(b), y.Row(b)
		for p := 0; p < h*w; p++ {
			for ch, v := range src[p*c : (p+1)*c] {
				dst[ch] += v * scale
			}
		}
	}
}

// GlobalAvgPoolD is the backward pass of GlobalAvgPool.
func GlobalAvgPoolD(dy, dx *Array) {
	n, h, w, c := dims4(dx)
	scale := 1 / float32(h*w)
	for b := 0; b < n; b++ {
		grad, dst := dy.Row(b), dx.Row(b)
		for p := 0; p < h*w; p++ {
			for ch, v := range grad {
				dst[p*c+ch] = v * scale
			}
		}
	}
}

// PadChannels copies x [N,H,W,C] into y [N,H,W,C+extra] placing the input channels after
// `before` zero channels, with the remaining channels zero.
func PadChannels(x, y *Array, before int) {
	n, h, w, c := dims4(x)
	_, _, _, cy := dims4(y)
	if before < 0 || before+c > cy {
		panic(fmt.Sprintf("PadChannels: cannot pad %v to %v at offset %d", x.Dims(), y.Dims(), before))
	}
	clear(y.Data)
	for p := 0; p < n*h*w; p++ {
		copy(y.Data[p*cy+before:p*cy+before+c], x.Data[p*c:(p+1)*c])
	}
}

// PadChannelsD extracts the gradient of the original channels from dy.
func PadChannelsD(dy, dx *Array, before int) {
	n, h, w, c := dims4(dx)
	_, _, _, cy := dims4(dy)
	for p := 0; p < n*h*w; p++ {
		copy(dx.Data[p*c:(p+1)*c], dy.Data[p*cy+before:p*cy+before+c])
	}
}

func dims4(a *Array) (n, h, w, c int) {
	d := a.Dims()
	if len(d) != 4 {
		panic(fmt.Sprintf("expect 4 dimensional array, got %v", d))
	}
	return d[0], d[1], d[2], d[3]
}
