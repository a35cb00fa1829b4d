package nnet

import "fmt"

// ModelScope prefixes the names of all network parameters.
const ModelScope = "cnn"

// ResNet appends the layers for a residual network with three stages of blocks residual blocks
// at 16, 32 and 64 channels to the config, see https://arxiv.org/abs/1512.03385.
// For 32x32 input the final feature map is checked to be [8,8,64].
func ResNet(conf Config, blocks, classes int) Config {
	c := conf.AddScope("conv0",
		Conv{Nfeats: 16, Size: 3},
		BatchNorm{},
		Activation{Atype: "relu"},
	)
	// [32,32,16] => [32,32,16] => [16,16,32] => [8,8,64]
	for stage, nfeat := range []int{16, 32, 64} {
		for i := 0; i < blocks; i++ {
			scope := fmt.Sprintf("conv%d_%d", stage+1, i)
			c = c.AddScope(scope, Residual{Nfeats: nfeat, First: stage == 0 && i == 0})
		}
	}
	c = c.AddLayers(Check{Shape: []int{8, 8, 64}})
	return c.AddScope("fc",
		BatchNorm{},
		Activation{Atype: "relu"},
		Pool{},
		Check{Shape: []int{64}},
		Linear{Nout: classes},
	)
}
