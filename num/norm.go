package num

import (
	"fmt"
	"math"
)

// BatchNormEpsilon is added to the variance before taking the square root.
const BatchNormEpsilon = 1e-3

// BatchNormCache holds the values saved from the forward pass that are needed for the gradient.
type BatchNormCache struct {
	Mean   []float32
	InvStd []float32
	Xhat   *Array
}

// BatchNorm normalises x over all but the last (channel) dimension using the batch moments,
// then applies the per channel scale gamma and offset beta. The normalised input is saved in
// cache for use by BatchNormD.
func BatchNorm(x, gamma, beta, y *Array, cache *BatchNormCache) {
	dims := x.Dims()
	c := dims[len(dims)-1]
	if gamma.Size() != c || beta.Size() != c || !SameShape(dims, y.Dims()) {
		panic(fmt.Sprintf("BatchNorm: invalid shapes x=%v gamma=%v beta=%v y=%v", dims, gamma.Dims(), beta.Dims(), y.Dims()))
	}
	m := x.Size() / c
	cache.Mean = resize(cache.Mean, c)
	cache.InvStd = resize(cache.InvStd, c)
	cache.Xhat = Reuse(cache.Xhat, dims...)

	mean := make([]float64, c)
	for i, v := range x.Data {
		mean[i%c] += float64(v)
	}
	for ch := range mean {
		mean[ch] /= float64(m)
	}
	variance := make([]float64, c)
	for i, v := range x.Data {
		d := float64(v) - mean[i%c]
		variance[i%c] += d * d
	}
	for ch := range variance {
		cache.Mean[ch] = float32(mean[ch])
		cache.InvStd[ch] = float32(1 / math.Sqrt(variance[ch]/float64(m)+BatchNormEpsilon))
	}
	xhat := cache.Xhat.Data
	for i, v := range x.Data {
		ch := i % c
		xhat[i] = (v - cache.Mean[ch]) * cache.InvStd[ch]
		y.Data[i] = gamma.Data[ch]*xhat[i] + beta.Data[ch]
	}
}

// BatchNormD computes the gradients for a batch normalisation layer given the output gradient dy.
// dx may be nil if the input gradient is not needed.
func BatchNormD(dy, gamma *Array, cache *BatchNormCache, dx, dgamma, dbeta *Array) {
	dims := dy.Dims()
	c := dims[len(dims)-1]
	m := dy.Size() / c
	xhat := cache.Xhat.Data
	sumDy := make([]float64, c)
	sumDyXhat := make([]float64, c)
	for i, v := range dy.Data {
		sumDy[i%c] += float64(v)
		sumDyXhat[i%c] += float64(v) * float64(xhat[i])
	}
	for ch := 0; ch < c; ch++ {
		dbeta.Data[ch] = float32(sumDy[ch])
		dgamma.Data[ch] = float32(sumDyXhat[ch])
	}
	if dx == nil {
		return
	}
	fm := float64(m)
	for i, v := range dy.Data {
		ch := i % c
		scale := float64(gamma.Data[ch]) * float64(cache.InvStd[ch]) / fm
		dx.Data[i] = float32(scale * (fm*float64(v) - sumDy[ch] - float64(xhat[i])*sumDyXhat[ch]))
	}
}

func resize(s []float32, n int) []float32 {
	if cap(s) < n {
		return make([]float32, n)
	}
	return s[:n]
}
