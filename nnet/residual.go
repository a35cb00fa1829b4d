package nnet

import (
	"fmt"
	"math/rand"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// Residual block computing F(x) + shortcut(x), where F is two batchNorm, relu, 3x3 conv
// sub-layers. If Nfeats is double the input channels the first conv has stride 2 and the
// shortcut is a 2x2 average pool with the extra channels zero padded equally on each side.
// First selects the entry variant which omits the batchNorm and relu before the first conv.
// Sub-layer parameters are named under <scope>/conv1_in_block and <scope>/conv2_in_block.
type Residual struct {
	Nfeats int
	First  bool `json:",omitempty"`
}

func (c Residual) Marshal() LayerConfig {
	return LayerConfig{Type: "residual", Data: marshal(c)}
}

func (c Residual) ToString() string {
	if c.First {
		return fmt.Sprintf("residual %d first", c.Nfeats)
	}
	return fmt.Sprintf("residual %d", c.Nfeats)
}

type residual struct {
	Residual
	layerBase
	layers  []Layer
	down    bool
	padding int
	pooled  *num.Array
	dpooled *num.Array
}

func (l *residual) OutShape(inShape []int) []int {
	if l.down {
		return []int{inShape[0] / 2, inShape[1] / 2, l.Nfeats}
	}
	return []int{inShape[0], inShape[1], l.Nfeats}
}

func (l *residual) Init(dev num.Device, inShape []int, scope string) error {
	if len(inShape) != 3 {
		return errors.Errorf("%s: residual block expects 3 dimensional input, got %v", scope, inShape)
	}
	nin := inShape[2]
	stride := 1
	switch {
	case l.Nfeats == nin:
	case l.Nfeats == 2*nin:
		if inShape[0]%2 != 0 || inShape[1]%2 != 0 {
			return errors.Errorf("%s: cannot downsample odd input size %v", scope, inShape)
		}
		l.down, l.padding, stride = true, nin/2, 2
	default:
		return errors.Errorf("%s: output channels %d must equal or double input channels %d", scope, l.Nfeats, nin)
	}
	l.layers = nil
	var scopes []string
	add := func(sc string, layers ...Layer) {
		for _, layer := range layers {
			l.layers = append(l.layers, layer)
			scopes = append(scopes, sc)
		}
	}
	block1, block2 := scope+"/conv1_in_block", scope+"/conv2_in_block"
	if !l.First {
		add(block1, &batchNorm{}, &activation{Activation: Activation{Atype: "relu"}})
	}
	add(block1, &conv{Conv: Conv{Nfeats: l.Nfeats, Size: 3, Stride: stride}})
	add(block2,
		&batchNorm{},
		&activation{Activation: Activation{Atype: "relu"}},
		&conv{Conv: Conv{Nfeats: l.Nfeats, Size: 3, Stride: 1}},
	)
	shape := inShape
	for i, layer := range l.layers {
		if err := layer.Init(dev, shape, scopes[i]); err != nil {
			return err
		}
		shape = layer.OutShape(shape)
	}
	if out := l.OutShape(inShape); !num.SameShape(shape, out) {
		return errors.Errorf("%s: residual branch shape %v does not match shortcut %v", scope, shape, out)
	}
	return nil
}

func (l *residual) Params() []*Param {
	var params []*Param
	for _, layer := range l.layers {
		if pl, ok := layer.(ParamLayer); ok {
			params = append(params, pl.Params()...)
		}
	}
	return params
}

func (l *residual) InitParams(rng *rand.Rand) {
	for _, layer := range l.layers {
		if pl, ok := layer.(ParamLayer); ok {
			pl.InitParams(rng)
		}
	}
}

func (l *residual) Fprop(in *num.Array) *num.Array {
	l.src = in
	x := in
	for _, layer := range l.layers {
		x = layer.Fprop(x)
	}
	l.dst = num.Reuse(l.dst, x.Dims()...)
	if l.down {
		d := in.Dims()
		l.pooled = num.Reuse(l.pooled, d[0], d[1]/2, d[2]/2, d[3])
		num.AvgPool(in, l.pooled, 2)
		num.PadChannels(l.pooled, l.dst, l.padding)
	} else {
		copy(l.dst.Data, in.Data)
	}
	num.Axpy(1, x, l.dst)
	return l.dst
}

func (l *residual) Bprop(grad *num.Array) *num.Array {
	g := grad
	for i := len(l.layers) - 1; i >= 0; i-- {
		g = l.layers[i].Bprop(g)
	}
	l.dsrc = num.Reuse(l.dsrc, l.src.Dims()...)
	if l.down {
		l.dpooled = num.Reuse(l.dpooled, l.pooled.Dims()...)
		num.PadChannelsD(grad, l.dpooled, l.padding)
		num.AvgPoolD(l.dpooled, l.dsrc, 2)
	} else {
		copy(l.dsrc.Data, grad.Data)
	}
	num.Axpy(1, g, l.dsrc)
	return l.dsrc
}
