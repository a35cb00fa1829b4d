package num

import "fmt"

// ConvShape holds the geometry of a 2d convolution over NHWC input with "same" padding.
// Filters are stored as [Size, Size, C, Nfeats], which is also the row major layout of
// the [Size*Size*C, Nfeats] matrix used with the im2col buffer.
type ConvShape struct {
	N, H, W, C      int
	Nfeats          int
	Size, Stride    int
	OutH, OutW      int
	PadTop, PadLeft int
}

// NewConvShape calculates the output size and padding for the given input dims [N,H,W,C].
// Padding follows the usual "same" rule: output is ceil(in/stride) and any odd padding
// goes at the bottom and right edges.
func NewConvShape(inDims []int, nfeats, size, stride int) ConvShape {
	if len(inDims) != 4 {
		panic(fmt.Sprintf("NewConvShape: expect 4 dimensional input, got %v", inDims))
	}
	if stride < 1 {
		stride = 1
	}
	c := ConvShape{N: inDims[0], H: inDims[1], W: inDims[2], C: inDims[3], Nfeats: nfeats, Size: size, Stride: stride}
	c.OutH = (c.H + stride - 1) / stride
	c.OutW = (c.W + stride - 1) / stride
	c.PadTop = max((c.OutH-1)*stride+size-c.H, 0) / 2
	c.PadLeft = max((c.OutW-1)*stride+size-c.W, 0) / 2
	return c
}

// OutDims is the output shape [N,OutH,OutW,Nfeats].
func (c ConvShape) OutDims() []int {
	return []int{c.N, c.OutH, c.OutW, c.Nfeats}
}

// FilterDims is the filter shape [Size,Size,C,Nfeats].
func (c ConvShape) FilterDims() []int {
	return []int{c.Size, c.Size, c.C, c.Nfeats}
}

func (c ConvShape) patch() int { return c.Size * c.Size * c.C }

func (c ConvShape) pixels() int { return c.OutH * c.OutW }

// im2col copies the receptive field of each output pixel of one image into a row of cols.
func (c ConvShape) im2col(src, cols []float32) {
	k := c.patch()
	for oy := 0; oy < c.OutH; oy++ {
		for ox := 0; ox < c.OutW; ox++ {
			row := cols[(oy*c.OutW+ox)*k : (oy*c.OutW+ox+1)*k]
			for ky := 0; ky < c.Size; ky++ {
				iy := oy*c.Stride + ky - c.PadTop
				for kx := 0; kx < c.Size; kx++ {
					ix := ox*c.Stride + kx - c.PadLeft
					dst := row[(ky*c.Size+kx)*c.C : (ky*c.Size+kx+1)*c.C]
					if iy < 0 || iy >= c.H || ix < 0 || ix >= c.W {
						for i := range dst {
							dst[i] = 0
						}
						continue
					}
					copy(dst, src[(iy*c.W+ix)*c.C:(iy*c.W+ix+1)*c.C])
				}
			}
		}
	}
}

// col2im accumulates the gradient rows back onto the input image positions.
func (c ConvShape) col2im(cols, dst []float32) {
	k := c.patch()
	for oy := 0; oy < c.OutH; oy++ {
		for ox := 0; ox < c.OutW; ox++ {
			row := cols[(oy*c.OutW+ox)*k : (oy*c.OutW+ox+1)*k]
			for ky := 0; ky < c.Size; ky++ {
				iy := oy*c.Stride + ky - c.PadTop
				if iy < 0 || iy >= c.H {
					continue
				}
				for kx := 0; kx < c.Size; kx++ {
					ix := ox*c.Stride + kx - c.PadLeft
					if ix < 0 || ix >= c.W {
						continue
					}
					src := row[(ky*c.Size+kx)*c.C : (ky*c.Size+kx+1)*c.C]
					out := dst[(iy*c.W+ix)*c.C : (iy*c.W+ix+1)*c.C]
					for i, v := range src {
						out[i] += v
					}
				}
			}
		}
	}
}

func (c ConvShape) check(x, w, y *Array) {
	if !SameShape(x.Dims(), []int{c.N, c.H, c.W, c.C}) {
		panic(fmt.Sprintf("Conv: input shape %v does not match %+v", x.Dims(), c))
	}
	if w.Size() != c.patch()*c.Nfeats {
		panic(fmt.Sprintf("Conv: filter shape %v does not match %+v", w.Dims(), c))
	}
	if !SameShape(y.Dims(), c.OutDims()) {
		panic(fmt.Sprintf("Conv: output shape %v expecting %v", y.Dims(), c.OutDims()))
	}
}

// ConvFprop computes y = conv(x, w) for each image in the batch in parallel.
func ConvFprop(dev Device, c ConvShape, x, w, y *Array, cols *Scratch) {
	c.check(x, w, y)
	k, p := c.patch(), c.pixels()
	wmat := w.Reshape(k, c.Nfeats)
	cols.Reserve(dev)
	dev.Parallel(c.N, func(worker, i int) {
		buf := cols.Get(worker, p*k)
		c.im2col(x.Row(i), buf)
		Gemm(1, 0, FromSlice(buf, p, k), wmat, FromSlice(y.Row(i), p, c.Nfeats), NoTrans, NoTrans)
	})
}

// ConvBprop sets dx to the gradient w.r.t. the input (if dx is not nil) and dw to the gradient
// w.r.t. the filter, given the output gradient dy.
func ConvBprop(dev Device, c ConvShape, x, w, dy, dx, dw *Array, cols, acc *Scratch) {
	c.check(x, w, dy)
	k, p := c.patch(), c.pixels()
	wmat := w.Reshape(k, c.Nfeats)
	cols.Reserve(dev)
	acc.Reserve(dev)
	for i := range *acc {
		clear(acc.Get(i, k*c.Nfeats))
	}
	dev.Parallel(c.N, func(worker, i int) {
		buf := cols.Get(worker, p*k)
		c.im2col(x.Row(i), buf)
		colMat := FromSlice(buf, p, k)
		dyMat := FromSlice(dy.Row(i), p, c.Nfeats)
		Gemm(1, 1, colMat, dyMat, FromSlice(acc.Get(worker, k*c.Nfeats), k, c.Nfeats), Trans, NoTrans)
		if dx != nil {
			Gemm(1, 0, dyMat, wmat, colMat, NoTrans, Trans)
			dst := dx.Row(i)
			clear(dst)
			c.col2im(buf, dst)
		}
	})
	clear(dw.Data)
	for i := range *acc {
		Axpy(1, FromSlice(acc.Get(i, k*c.Nfeats), k*c.Nfeats), dw)
	}
}
