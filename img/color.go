package img

import (
	"math/rand"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// Default parameters for the radial blur.
var (
	RadioSigma = 1.0
	RadioSize  = 2
)

// Color transform applied to a whole [N,H,W,C] batch of images.
type ColorFunc func(dev num.Device, images *num.Array, rng *rand.Rand) *num.Array

// ColorTransform returns the transform for the named data variant.
func ColorTransform(variant string) (ColorFunc, error) {
	switch variant {
	case "greyscale":
		return func(dev num.Device, x *num.Array, rng *rand.Rand) *num.Array { return Greyscale(x) }, nil
	case "negative":
		return func(dev num.Device, x *num.Array, rng *rand.Rand) *num.Array { return Negative(x, Max(x)) }, nil
	case "randomkernel":
		return RandomKernel, nil
	case "radiokernel":
		return func(dev num.Device, x *num.Array, rng *rand.Rand) *num.Array {
			return RadioKernel(dev, x, RadioSigma, RadioSize)
		}, nil
	}
	return nil, errors.Errorf("unknown color transform %q", variant)
}

// Greyscale converts RGB images to luma, replicated over all three channels.
func Greyscale(in *num.Array) *num.Array {
	out := num.NewLike(in)
	for i := 0; i+2 < len(in.Data); i += 3 {
		y := LumaR*in.Data[i] + LumaG*in.Data[i+1] + LumaB*in.Data[i+2]
		out.Data[i], out.Data[i+1], out.Data[i+2] = y, y, y
	}
	return out
}

// Negative inverts each value as max - x.
func Negative(in *num.Array, maxVal float32) *num.Array {
	out := num.NewLike(in)
	for i, x := range in.Data {
		out.Data[i] = maxVal - x
	}
	return out
}

// Max returns the largest value in the array.
func Max(a *num.Array) float32 {
	if len(a.Data) == 0 {
		return 0
	}
	m := a.Data[0]
	for _, x := range a.Data[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// RandomKernel blurs each channel of each image with its own random 3x3 kernel whose
// weights are positive and sum to one. Kernels are drawn in image order before the
// convolutions run in parallel.
func RandomKernel(dev num.Device, in *num.Array, rng *rand.Rand) *num.Array {
	d := in.Dims()
	n, c := d[0], d[3]
	kernels := make([][]float32, n*c)
	for i := range kernels {
		k := make([]float32, 9)
		var sum float32
		for j := range k {
			k[j] = rng.Float32()
			sum += k[j]
		}
		for j := range k {
			k[j] /= sum
		}
		kernels[i] = k
	}
	return convolveBatch(dev, in, func(i, ch int) Convolution {
		return NewConv2D(kernels[i*c+ch], 1, d[2], d[1])
	})
}

// RadioKernel applies a radial gaussian blur with the given sigma and kernel radius.
func RadioKernel(dev num.Device, in *num.Array, sigma float64, size int) *num.Array {
	d := in.Dims()
	kernel := gaussian1d(sigma, size)
	return convolveBatch(dev, in, func(i, ch int) Convolution {
		return NewConv(kernel, size, d[2], d[1])
	})
}

// apply a convolution to each channel plane of each image
func convolveBatch(dev num.Device, in *num.Array, newConv func(i, ch int) Convolution) *num.Array {
	d := in.Dims()
	n, h, w, c := d[0], d[1], d[2], d[3]
	out := num.NewLike(in)
	var src, dst num.Scratch
	src.Reserve(dev)
	dst.Reserve(dev)
	dev.Parallel(n, func(worker, i int) {
		sp, dp := src.Get(worker, h*w), dst.Get(worker, h*w)
		x, y := in.Row(i), out.Row(i)
		for ch := 0; ch < c; ch++ {
			for j := range sp {
				sp[j] = x[j*c+ch]
			}
			newConv(i, ch).Apply(sp, dp)
			for j, v := range dp {
				y[j*c+ch] = v
			}
		}
	})
	return out
}
