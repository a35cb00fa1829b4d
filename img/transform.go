package img

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/jnb666/deepres/num"
)

// Types of image transformations
type TransType int

const NoTrans TransType = 0

const (
	Crop TransType = 1 << iota
	HorizFlip
)

// Augment is the random crop and flip used for training data.
var Augment = Crop | HorizFlip

var transTypeNames = map[TransType]string{
	Crop:      "Crop",
	HorizFlip: "HorizFlip",
}

func (t TransType) String() string {
	if t == NoTrans {
		return "None"
	}
	s := []string{}
	for key, name := range transTypeNames {
		if t&key != 0 {
			s = append(s, name)
		}
	}
	sort.Strings(s)
	return strings.Join(s, " ")
}

// Transformer applies random transformations to batches of [N,H,W,C] images.
// Each worker has its own random number generator seeded from the one passed to
// NewTransformer, so for a given seed and worker count the output is reproducible.
type Transformer struct {
	Trans TransType
	Pad   int
	dev   num.Device
	rng   []*rand.Rand
}

// Create a new transformer object. With Crop each image is padded with pad zero pixels on
// every side and then cropped back to the original size at a random offset.
func NewTransformer(dev num.Device, trans TransType, pad int, rng *rand.Rand) *Transformer {
	t := &Transformer{Trans: trans, Pad: pad, dev: dev}
	for i := 0; i < max(dev.Workers, 1); i++ {
		t.rng = append(t.rng, rand.New(rand.NewSource(rng.Int63())))
	}
	return t
}

// TransformBatch transforms each image from in into out in parallel and returns out.
// The output shape is always the same as the input.
func (t *Transformer) TransformBatch(in, out *num.Array) *num.Array {
	dims := in.Dims()
	if len(dims) != 4 || !num.SameShape(dims, out.Dims()) {
		panic(fmt.Sprintf("TransformBatch: invalid shapes %v %v", dims, out.Dims()))
	}
	t.dev.Parallel(dims[0], func(worker, i int) {
		t.Transform(in.Row(i), out.Row(i), dims[1], dims[2], dims[3], t.rng[worker%len(t.rng)])
	})
	return out
}

// Transform a single image with height h, width w and c channels from src into dst.
func (t *Transformer) Transform(src, dst []float32, h, w, c int, rng *rand.Rand) {
	var ox, oy int
	if t.Trans&Crop != 0 && t.Pad > 0 {
		ox = rng.Intn(2*t.Pad+1) - t.Pad
		oy = rng.Intn(2*t.Pad+1) - t.Pad
	}
	flip := t.Trans&HorizFlip != 0 && rng.Float64() < 0.5
	for y := 0; y < h; y++ {
		sy := y + oy
		for x := 0; x < w; x++ {
			sx := x
			if flip {
				sx = w - x - 1
			}
			sx += ox
			out := dst[(y*w+x)*c : (y*w+x+1)*c]
			if sy < 0 || sy >= h || sx < 0 || sx >= w {
				clear(out)
				continue
			}
			copy(out, src[(sy*w+sx)*c:(sy*w+sx+1)*c])
		}
	}
}
