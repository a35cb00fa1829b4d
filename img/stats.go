package img

import (
	"github.com/jnb666/deepres/num"
	"github.com/jnb666/deepres/stats"
)

// Calculate per channel mean and stddev from one or more sets of [N,H,W,C] images
func GetStats(images ...*num.Array) (mean, std []float32) {
	channels := images[0].Dims()[3]
	stat := make([]stats.Average, channels)
	for _, arr := range images {
		for i, val := range arr.Data {
			stat[i%channels].Add(float64(val))
		}
	}
	mean = make([]float32, channels)
	std = make([]float32, channels)
	for i, s := range stat {
		mean[i] = float32(s.Mean)
		std[i] = float32(s.StdDev)
	}
	return mean, std
}

// Normalise scales images in place to zero mean and unit variance per channel.
// Channels with zero deviation are only shifted.
func Normalise(images *num.Array, mean, std []float32) {
	channels := len(mean)
	for i, val := range images.Data {
		ch := i % channels
		val -= mean[ch]
		if std[ch] > 0 {
			val /= std[ch]
		}
		images.Data[i] = val
	}
}
