package img

import (
	"math"
)

func gaussian1d(sigma float64, size int) []float32 {
	kernel := make([]float32, 2*size+1)
	for x := -size; x <= size; x++ {
		d2 := float64(x * x)
		kernel[x+size] = float32(math.Exp(-d2/(2*sigma*sigma)) / (math.Sqrt(2*math.Pi) * sigma))
	}
	return kernel
}

func gaussian2d(sigma float64, size int) []float32 {
	dims := 2*size + 1
	kernel := make([]float32, dims*dims)
	for y := -size; y <= size; y++ {
		for x := -size; x <= size; x++ {
			d2 := float64(x*x + y*y)
			kernel[(y+size)*dims+x+size] = float32(math.Exp(-d2/(2*sigma*sigma)) / (math.Pi * 2 * sigma * sigma))
		}
	}
	return kernel
}

// Convolution to apply kernel to a single channel image stored in row major order.
// Kernel weights which fall outside the image are excluded and the result is rescaled
// by the sum of the weights used.
type Convolution interface {
	Apply(in, out []float32)
}

// Convolution assuming 1d seperable kernel
type conv struct {
	w, h  int
	ksize int
	kdata []float32
	temp  []float32
}

// NewConv creates a separable convolution with a kernel of 2*ksize+1 values.
func NewConv(kernel []float32, ksize, width, height int) Convolution {
	return &conv{w: width, h: height, ksize: ksize, kdata: kernel, temp: make([]float32, width*height)}
}

func (c *conv) Apply(in, out []float32) {
	for x := 0; x < c.w; x++ {
		start := max(x-c.ksize, 0)
		end := min(x+c.ksize, c.w-1)
		var sum float32
		for ix := start; ix <= end; ix++ {
			sum += c.kdata[x-ix+c.ksize]
		}
		for y := 0; y < c.h; y++ {
			var val float32
			for ix := start; ix <= end; ix++ {
				val += in[ix+y*c.w] * c.kdata[x-ix+c.ksize]
			}
			c.temp[x+y*c.w] = val / sum
		}
	}
	for y := 0; y < c.h; y++ {
		start := max(y-c.ksize, 0)
		end := min(y+c.ksize, c.h-1)
		var sum float32
		for iy := start; iy <= end; iy++ {
			sum += c.kdata[y-iy+c.ksize]
		}
		for x := 0; x < c.w; x++ {
			var val float32
			for iy := start; iy <= end; iy++ {
				val += c.temp[x+iy*c.w] * c.kdata[y-iy+c.ksize]
			}
			out[x+y*c.w] = val / sum
		}
	}
}

// Convolution with a general 2d kernel of (2*ksize+1)^2 values
type conv2d struct {
	w, h  int
	ksize int
	kdata []float32
}

// NewConv2D creates a convolution with a non separable kernel.
func NewConv2D(kernel []float32, ksize, width, height int) Convolution {
	return &conv2d{w: width, h: height, ksize: ksize, kdata: kernel}
}

func (c *conv2d) Apply(in, out []float32) {
	dims := 2*c.ksize + 1
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			var val, sum float32
			for ky := -c.ksize; ky <= c.ksize; ky++ {
				iy := y + ky
				if iy < 0 || iy >= c.h {
					continue
				}
				for kx := -c.ksize; kx <= c.ksize; kx++ {
					ix := x + kx
					if ix < 0 || ix >= c.w {
						continue
					}
					k := c.kdata[(c.ksize-ky)*dims+c.ksize-kx]
					val += in[ix+iy*c.w] * k
					sum += k
				}
			}
			if sum != 0 {
				val /= sum
			}
			out[x+y*c.w] = val
		}
	}
}
