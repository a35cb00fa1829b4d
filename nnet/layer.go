package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// Layer interface type represents one layer of the neural net. Shapes passed to Init and
// OutShape exclude the batch dimension, arrays passed to Fprop and Bprop include it.
type Layer interface {
	Init(dev num.Device, inShape []int, scope string) error
	OutShape(inShape []int) []int
	Fprop(in *num.Array) *num.Array
	Bprop(grad *num.Array) *num.Array
	ToString() string
}

// ParamLayer is a layer with trainable parameters
type ParamLayer interface {
	Layer
	Params() []*Param
	InitParams(rng *rand.Rand)
}

// Param is a named trainable parameter with its gradient and optimizer state.
type Param struct {
	Name     string
	Value    *num.Array
	Grad     *num.Array
	Decay    bool
	velocity *num.Array
}

func newParam(name string, decay bool, dims ...int) *Param {
	return &Param{
		Name:     name,
		Value:    num.New(dims...),
		Grad:     num.New(dims...),
		Decay:    decay,
		velocity: num.New(dims...),
	}
}

// momentum update: v = momentum*v + grad + lambda*w,  w -= eta*v
func (p *Param) update(eta, momentum, lambda float32) {
	if p.Decay && lambda != 0 {
		num.Axpy(lambda, p.Value, p.Grad)
	}
	num.Scale(momentum, p.velocity)
	num.Axpy(1, p.Grad, p.velocity)
	num.Axpy(-eta, p.velocity, p.Value)
}

func (p *Param) String() string {
	return fmt.Sprintf("%s %v", p.Name, p.Value.Dims())
}

// Layer configuration details
type LayerConfig struct {
	Type  string
	Scope string `json:",omitempty"`
	Data  json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() (Layer, error) {
	var err error
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		err = unmarshal(l.Data, cfg)
		return &conv{Conv: *cfg}, err
	case "batchNorm":
		return &batchNorm{}, nil
	case "activation":
		cfg := new(Activation)
		if err = unmarshal(l.Data, cfg); err == nil && cfg.Atype != "relu" {
			err = errors.Errorf("activation type %s invalid", cfg.Atype)
		}
		return &activation{Activation: *cfg}, err
	case "pool":
		return &pool{}, nil
	case "linear":
		cfg := new(Linear)
		err = unmarshal(l.Data, cfg)
		return &linear{Linear: *cfg}, err
	case "dropout":
		return &dropout{keep: 1}, nil
	case "residual":
		cfg := new(Residual)
		err = unmarshal(l.Data, cfg)
		return &residual{Residual: *cfg}, err
	case "check":
		cfg := new(Check)
		err = unmarshal(l.Data, cfg)
		return &check{Check: *cfg}, err
	default:
		return nil, errors.Errorf("invalid layer type: %s", l.Type)
	}
}

func (l LayerConfig) String() string {
	layer, err := l.Unmarshal()
	if err != nil {
		return err.Error()
	}
	if l.Scope != "" {
		return fmt.Sprintf("%-10s %s", l.Scope, layer.ToString())
	}
	return layer.ToString()
}

// Convolutional layer with "same" padding and no bias, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv %+v", c)
}

// Batch normalisation layer using the statistics of the current batch.
type BatchNorm struct{}

func (c BatchNorm) Marshal() LayerConfig {
	return LayerConfig{Type: "batchNorm"}
}

func (c BatchNorm) ToString() string { return "batchNorm" }

// Activation layer: only relu is supported.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

// Pool averages over the spatial dimensions, converting [H,W,C] to [C].
type Pool struct{}

func (c Pool) Marshal() LayerConfig {
	return LayerConfig{Type: "pool"}
}

func (c Pool) ToString() string { return "globalAvgPool" }

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

// Dropout layer, the keep probability is set for each training step.
type Dropout struct{}

func (c Dropout) Marshal() LayerConfig {
	return LayerConfig{Type: "dropout"}
}

func (c Dropout) ToString() string { return "dropout" }

// Check asserts the shape of its input when the network is constructed.
type Check struct {
	Shape []int
}

func (c Check) Marshal() LayerConfig {
	return LayerConfig{Type: "check", Data: marshal(c)}
}

func (c Check) ToString() string {
	return fmt.Sprintf("check %v", c.Shape)
}

// base layer type
type layerBase struct {
	src    *num.Array
	dst    *num.Array
	dsrc   *num.Array
	noGrad bool
}

func (l *layerBase) OutShape(inShape []int) []int { return inShape }

func (l *layerBase) skipInputGrad() { l.noGrad = true }

// convolutional layer implementation
type conv struct {
	Conv
	layerBase
	dev   num.Device
	w     *Param
	shape num.ConvShape
	cols  num.Scratch
	acc   num.Scratch
}

func (l *conv) OutShape(inShape []int) []int {
	stride := max(l.Stride, 1)
	return []int{(inShape[0] + stride - 1) / stride, (inShape[1] + stride - 1) / stride, l.Nfeats}
}

func (l *conv) Init(dev num.Device, inShape []int, scope string) error {
	if len(inShape) != 3 {
		return errors.Errorf("%s: conv expects 3 dimensional input, got %v", scope, inShape)
	}
	if l.Nfeats < 1 || l.Size < 1 {
		return errors.Errorf("%s: invalid conv config %+v", scope, l.Conv)
	}
	l.dev = dev
	l.w = newParam(scope+"/conv", true, l.Size, l.Size, inShape[2], l.Nfeats)
	return nil
}

func (l *conv) Params() []*Param { return []*Param{l.w} }

// Glorot uniform initialisation
func (l *conv) InitParams(rng *rand.Rand) {
	dims := l.w.Value.Dims()
	fanIn := dims[0] * dims[1] * dims[2]
	fanOut := dims[0] * dims[1] * dims[3]
	uniform(rng, l.w.Value, math.Sqrt(6/float64(fanIn+fanOut)))
}

func (l *conv) Fprop(in *num.Array) *num.Array {
	l.src = in
	l.shape = num.NewConvShape(in.Dims(), l.Nfeats, l.Size, l.Stride)
	l.dst = num.Reuse(l.dst, l.shape.OutDims()...)
	num.ConvFprop(l.dev, l.shape, in, l.w.Value, l.dst, &l.cols)
	return l.dst
}

func (l *conv) Bprop(grad *num.Array) *num.Array {
	var dx *num.Array
	if !l.noGrad {
		l.dsrc = num.Reuse(l.dsrc, l.src.Dims()...)
		dx = l.dsrc
	}
	num.ConvBprop(l.dev, l.shape, l.src, l.w.Value, grad, dx, l.w.Grad, &l.cols, &l.acc)
	return dx
}

// batch normalisation layer implementation
type batchNorm struct {
	BatchNorm
	layerBase
	gamma *Param
	beta  *Param
	cache num.BatchNormCache
}

func (l *batchNorm) Init(dev num.Device, inShape []int, scope string) error {
	if len(inShape) == 0 {
		return errors.Errorf("%s: batchNorm needs input features", scope)
	}
	nfeat := inShape[len(inShape)-1]
	l.beta = newParam(scope+"/beta", false, nfeat)
	l.gamma = newParam(scope+"/gamma", false, nfeat)
	return nil
}

func (l *batchNorm) Params() []*Param { return []*Param{l.beta, l.gamma} }

func (l *batchNorm) InitParams(rng *rand.Rand) {
	l.beta.Value.Fill(0)
	l.gamma.Value.Fill(1)
}

func (l *batchNorm) Fprop(in *num.Array) *num.Array {
	l.src = in
	l.dst = num.Reuse(l.dst, in.Dims()...)
	num.BatchNorm(in, l.gamma.Value, l.beta.Value, l.dst, &l.cache)
	return l.dst
}

func (l *batchNorm) Bprop(grad *num.Array) *num.Array {
	l.dsrc = num.Reuse(l.dsrc, l.src.Dims()...)
	num.BatchNormD(grad, l.gamma.Value, &l.cache, l.dsrc, l.gamma.Grad, l.beta.Grad)
	return l.dsrc
}

// relu activation layer
type activation struct {
	Activation
	layerBase
}

func (l *activation) Init(dev num.Device, inShape []int, scope string) error { return nil }

func (l *activation) Fprop(in *num.Array) *num.Array {
	l.dst = num.Reuse(l.dst, in.Dims()...)
	num.Relu(in, l.dst)
	return l.dst
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	l.dsrc = num.Reuse(l.dsrc, grad.Dims()...)
	num.ReluD(l.dst, grad, l.dsrc)
	return l.dsrc
}

// global average pooling layer
type pool struct {
	Pool
	layerBase
}

func (l *pool) OutShape(inShape []int) []int {
	return []int{inShape[len(inShape)-1]}
}

func (l *pool) Init(dev num.Device, inShape []int, scope string) error {
	if len(inShape) != 3 {
		return errors.Errorf("%s: pool expects 3 dimensional input, got %v", scope, inShape)
	}
	return nil
}

func (l *pool) Fprop(in *num.Array) *num.Array {
	l.src = in
	dims := in.Dims()
	l.dst = num.Reuse(l.dst, dims[0], dims[3])
	num.GlobalAvgPool(in, l.dst)
	return l.dst
}

func (l *pool) Bprop(grad *num.Array) *num.Array {
	l.dsrc = num.Reuse(l.dsrc, l.src.Dims()...)
	num.GlobalAvgPoolD(grad, l.dsrc)
	return l.dsrc
}

// linear layer implementation: y = x.W + b
type linear struct {
	Linear
	layerBase
	w, b *Param
	nin  int
}

func (l *linear) OutShape(inShape []int) []int {
	return []int{l.Nout}
}

func (l *linear) Init(dev num.Device, inShape []int, scope string) error {
	if l.Nout < 1 {
		return errors.Errorf("%s: invalid linear config %+v", scope, l.Linear)
	}
	l.nin = num.Prod(inShape)
	l.w = newParam(scope+"/fc_weights", true, l.nin, l.Nout)
	l.b = newParam(scope+"/fc_bias", true, l.Nout)
	return nil
}

func (l *linear) Params() []*Param { return []*Param{l.w, l.b} }

// uniform unit scaling initialisation for weights, zero bias
func (l *linear) InitParams(rng *rand.Rand) {
	uniform(rng, l.w.Value, math.Sqrt(3/float64(l.nin)))
	l.b.Value.Fill(0)
}

func (l *linear) Fprop(in *num.Array) *num.Array {
	l.src = in
	nbatch := in.Dims()[0]
	l.dst = num.Reuse(l.dst, nbatch, l.Nout)
	for i := 0; i < nbatch; i++ {
		copy(l.dst.Row(i), l.b.Value.Data)
	}
	num.Gemm(1, 1, in.Reshape(nbatch, l.nin), l.w.Value, l.dst, num.NoTrans, num.NoTrans)
	return l.dst
}

func (l *linear) Bprop(grad *num.Array) *num.Array {
	nbatch := grad.Dims()[0]
	x := l.src.Reshape(nbatch, l.nin)
	l.b.Grad.Fill(0)
	for i := 0; i < nbatch; i++ {
		for j, v := range grad.Row(i) {
			l.b.Grad.Data[j] += v
		}
	}
	num.Gemm(1, 0, x, grad, l.w.Grad, num.Trans, num.NoTrans)
	if l.noGrad {
		return nil
	}
	l.dsrc = num.Reuse(l.dsrc, l.src.Dims()...)
	num.Gemm(1, 0, grad, l.w.Value, l.dsrc.Reshape(nbatch, l.nin), num.NoTrans, num.Trans)
	return l.dsrc
}

// dropout layer implementation
type dropout struct {
	Dropout
	layerBase
	keep float64
	rng  *rand.Rand
	mask []float32
}

func (l *dropout) Init(dev num.Device, inShape []int, scope string) error { return nil }

func (l *dropout) setKeepProb(keep float64, rng *rand.Rand) {
	l.keep, l.rng = keep, rng
}

func (l *dropout) Fprop(in *num.Array) *num.Array {
	if l.keep >= 1 || l.rng == nil {
		l.mask = nil
		return in
	}
	l.dst = num.Reuse(l.dst, in.Dims()...)
	if cap(l.mask) < in.Size() {
		l.mask = make([]float32, in.Size())
	}
	l.mask = l.mask[:in.Size()]
	scale := float32(1 / l.keep)
	for i, v := range in.Data {
		if l.rng.Float64() < l.keep {
			l.mask[i] = scale
		} else {
			l.mask[i] = 0
		}
		l.dst.Data[i] = v * l.mask[i]
	}
	return l.dst
}

func (l *dropout) Bprop(grad *num.Array) *num.Array {
	if l.mask == nil {
		return grad
	}
	l.dsrc = num.Reuse(l.dsrc, grad.Dims()...)
	for i, v := range grad.Data {
		l.dsrc.Data[i] = v * l.mask[i]
	}
	return l.dsrc
}

// shape check layer
type check struct {
	Check
	layerBase
}

func (l *check) Init(dev num.Device, inShape []int, scope string) error {
	if !num.SameShape(inShape, l.Shape) {
		return errors.Errorf("%s: expected shape %v, got %v", scope, l.Shape, inShape)
	}
	return nil
}

func (l *check) Fprop(in *num.Array) *num.Array { return in }

func (l *check) Bprop(grad *num.Array) *num.Array { return grad }

func uniform(rng *rand.Rand, a *num.Array, limit float64) {
	for i := range a.Data {
		a.Data[i] = float32((2*rng.Float64() - 1) * limit)
	}
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) error {
	return errors.Wrap(json.Unmarshal(data, v), "unmarshal layer config")
}
