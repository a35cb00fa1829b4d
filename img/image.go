// Package img contains routines for augmenting and transforming batches of images.
// Images are stored as float32 values in [N,H,W,C] order.
package img

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
)

// Luma weights for red, green and blue.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// Gray color stored a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: LumaR*float32(r)/0xffff + LumaG*float32(g)/0xffff + LumaB*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// Image wraps a single image stored in row major order with interleaved channels.
// Pixel values are divided by Scale to map them onto the 0-1 range.
type Image struct {
	Pix      []float32
	Height   int
	Width    int
	Channels int
	Scale    float32
}

// NewImage returns an image view of entry i from a [N,H,W,C] array.
func NewImage(images *num.Array, i int, scale float32) *Image {
	d := images.Dims()
	return &Image{Pix: images.Row(i), Height: d[1], Width: d[2], Channels: d[3], Scale: scale}
}

func (m *Image) ColorModel() color.Model {
	if m.Channels == 1 {
		return GrayModel
	}
	return RGBModel
}

func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *Image) At(x, y int) color.Color {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return RGB{}
	}
	p := m.Pix[(y*m.Width+x)*m.Channels:]
	if m.Channels < 3 {
		return Gray{Y: p[0] / m.Scale}
	}
	return RGB{R: p[0] / m.Scale, G: p[1] / m.Scale, B: p[2] / m.Scale}
}

func (m *Image) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	p := m.Pix[(y*m.Width+x)*m.Channels:]
	if m.Channels < 3 {
		p[0] = grayModel(c).(Gray).Y * m.Scale
		return
	}
	rgb := rgbModel(c).(RGB)
	p[0], p[1], p[2] = rgb.R*m.Scale, rgb.G*m.Scale, rgb.B*m.Scale
}

// Grid draws the first rows*cols images from the batch into a single image with a one pixel border.
func Grid(images *num.Array, rows, cols int, scale float32) image.Image {
	d := images.Dims()
	h, w := d[1]+1, d[2]+1
	dst := image.NewRGBA(image.Rect(0, 0, cols*w+1, rows*h+1))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	for i := 0; i < rows*cols && i < d[0]; i++ {
		at := image.Pt(1+(i%cols)*w, 1+(i/cols)*h)
		m := NewImage(images, i, scale)
		draw.Draw(dst, m.Bounds().Add(at), m, image.Point{}, draw.Src)
	}
	return dst
}

// SavePNG writes the image to file in png format.
func SavePNG(file string, m image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = png.Encode(f, m); err != nil {
		f.Close()
		return errors.Wrap(err, "encoding "+file)
	}
	return errors.WithStack(f.Close())
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1) * 0xffff)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}
