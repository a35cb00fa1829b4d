// Package nnet contains routines for constructing, training and testing neural networks.
package nnet

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers  []Layer
	Params  []*Param
	dev     num.Device
	inShape []int
	rng     *rand.Rand
	grad    *num.Array
	steps   int
}

// New function creates a new network with the given layers and initialises the weights using rng.
// inShape is the shape of one input sample. Layer configuration and shape errors are returned
// before any parameters are used.
func New(dev num.Device, conf Config, inShape []int, rng *rand.Rand) (*Network, error) {
	n := &Network{Config: conf, dev: dev, inShape: inShape, rng: rng}
	shape := inShape
	names := make(map[string]bool)
	for i, lc := range conf.Layers {
		layer, err := lc.Unmarshal()
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if err = layer.Init(dev, shape, path.Join(ModelScope, lc.Scope)); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if l, ok := layer.(ParamLayer); ok {
			for _, p := range l.Params() {
				if names[p.Name] {
					return nil, errors.Errorf("layer %d: duplicate parameter name %s", i, p.Name)
				}
				names[p.Name] = true
				n.Params = append(n.Params, p)
			}
		}
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	if len(n.Layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	if conf.Classes > 0 && !num.SameShape(shape, []int{conf.Classes}) {
		return nil, errors.Errorf("network output shape %v does not match %d classes", shape, conf.Classes)
	}
	if l, ok := n.Layers[0].(interface{ skipInputGrad() }); ok {
		l.skipInputGrad()
	}
	n.InitWeights(rng)
	return n, nil
}

// Initialise network weights
func (n *Network) InitWeights(rng *rand.Rand) {
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			l.InitParams(rng)
		}
	}
	for _, p := range n.Params {
		p.velocity.Fill(0)
	}
	if n.DebugLevel >= 2 {
		n.PrintWeights()
	}
}

// Param returns the parameter with the given name or nil if not found.
func (n *Network) Param(name string) *Param {
	for _, p := range n.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Feed forward the input to get the output logits. keepProb is applied to any dropout layers.
func (n *Network) Fprop(input *num.Array, keepProb float64) *num.Array {
	pred := input
	for i, layer := range n.Layers {
		if l, ok := layer.(interface{ setKeepProb(float64, *rand.Rand) }); ok {
			l.setKeepProb(keepProb, n.rng)
		}
		pred = layer.Fprop(pred)
		if n.DebugLevel >= 3 {
			fmt.Printf("layer %d output\n%s", i, pred)
		}
	}
	return pred
}

// Predict output classes given input data
func (n *Network) Predict(input *num.Array) []int32 {
	return num.Unhot(n.Fprop(input, 1))
}

// Regularisation returns the weight decay penalty lambda/2 * sum(w^2) over the decayed parameters.
func (n *Network) Regularisation() float64 {
	var sum float64
	for _, p := range n.Params {
		if p.Decay {
			sum += float64(num.Dot(p.Value, p.Value))
		}
	}
	return 0.5 * n.Lambda * sum
}

// Step performs one momentum SGD update on the batch x with one hot labels y using learning rate eta.
// It returns the loss including the regularisation term and the accuracy, both calculated
// before the weights are updated.
func (n *Network) Step(x, y *num.Array, eta, keepProb float64) (loss, acc float64) {
	loss, acc = n.Gradients(x, y, keepProb)
	loss += n.Regularisation()
	if n.DebugLevel >= 2 {
		fmt.Printf("step %d: loss=%.4f accuracy=%.4f\n", n.steps, loss, acc)
	}
	for _, p := range n.Params {
		p.update(float32(eta), float32(n.Momentum), float32(n.Lambda))
	}
	n.steps++
	return loss, acc
}

// Gradients runs the forward and backward pass, setting the gradient of the mean cross entropy
// loss for each parameter. Returns the loss without the regularisation term and the accuracy.
func (n *Network) Gradients(x, y *num.Array, keepProb float64) (loss, acc float64) {
	logits := n.Fprop(x, keepProb)
	n.grad = num.Reuse(n.grad, logits.Dims()...)
	loss = num.SoftmaxLoss(logits, y, n.grad)
	acc = num.Accuracy(logits, y)
	grad := n.grad
	for i := len(n.Layers) - 1; i >= 0 && grad != nil; i-- {
		grad = n.Layers[i].Bprop(grad)
	}
	return loss, acc
}

// Steps is the number of optimizer updates applied so far.
func (n *Network) Steps() int { return n.steps }

// Evaluate returns the mean of the per batch accuracy over the dataset with dropout disabled.
// Batches have batchSize samples and any final partial batch is skipped.
func (n *Network) Evaluate(dset *Dataset, batchSize int) float64 {
	nbatch := dset.Batches(batchSize)
	if nbatch == 0 {
		return 0
	}
	var total float64
	for i := 0; i < nbatch; i++ {
		x, y := dset.Batch(i, batchSize)
		total += num.Accuracy(n.Fprop(x, 1), y)
	}
	return total / float64(nbatch)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		shape = layer.OutShape(shape)
		s[i] = fmt.Sprintf("%2d: %-10s %-28s %v", i, n.Config.Layers[i].Scope, layer.ToString(), shape)
	}
	return fmt.Sprintf("== Network on %s ==\ninput %v\n%s\n%d parameter arrays", n.dev, n.inShape, strings.Join(s, "\n"), len(n.Params))
}

// Print network weights
func (n *Network) PrintWeights() {
	for _, p := range n.Params {
		fmt.Printf("== %s ==\n%s\n", p.Name, p.Value)
	}
}

// Set random number seed, or random seed if seed <= 0
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
