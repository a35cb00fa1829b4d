package nnet

import (
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jnb666/deepres/num"
)

func TestSanitizeName(t *testing.T) {
	for name, expect := range map[string]string{
		"cnn/conv0/conv":                  "cnn_conv0_conv",
		"cnn/conv1_0/conv1_in_block/conv": "cnn_conv1_0_conv1_in_block_conv",
		"cnn/fc/fc_bias":                  "cnn_fc_fc_bias",
		"plain":                           "plain",
	} {
		if s := SanitizeName(name); s != expect {
			t.Errorf("%s: got %s expect %s", name, s, expect)
		}
	}
}

func TestInputDir(t *testing.T) {
	conf := DefaultConfig()
	if dir := conf.InputDir(); dir != filepath.Join("cachedir", "models", "ResNet", "199") {
		t.Error("got", dir)
	}
	conf.InputEpoch = 0
	if dir := conf.InputDir(); dir != filepath.Join("cachedir", "models", "ResNet") {
		t.Error("got", dir)
	}
}

func TestCheckpoint(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	conf := smallConfig()
	net, err := New(dev, conf, []int{4, 4, 2}, rng)
	if err != nil {
		t.Fatal(err)
	}
	data := randomData(rng, 4, []int{4, 4, 2}, 3)
	for i := 0; i < 3; i++ {
		net.Step(data.Images, data.Labels, 0.1, 1)
	}
	dir := EpochDir(t.TempDir(), 4)
	if err = SaveWeights(dir, net.Params); err != nil {
		t.Fatal(err)
	}
	for _, p := range net.Params {
		arr, err := num.LoadNpy(filepath.Join(dir, SanitizeName(p.Name)+".npy"))
		if err != nil {
			t.Error(err)
			continue
		}
		if !reflect.DeepEqual(arr.Dims(), p.Value.Dims()) {
			t.Errorf("%s: saved shape %v expect %v", p.Name, arr.Dims(), p.Value.Dims())
		}
	}

	net2, err := New(dev, conf, []int{4, 4, 2}, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	// load only the output layer first
	if err = LoadWeights(dir, "cnn/fc", net2.Params); err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(net.Param("cnn/conv0/conv").Value.Data, net2.Param("cnn/conv0/conv").Value.Data) {
		t.Error("conv weights should not be loaded for fc scope")
	}
	if !reflect.DeepEqual(net.Param("cnn/fc/fc_weights").Value.Data, net2.Param("cnn/fc/fc_weights").Value.Data) {
		t.Error("fc weights not loaded")
	}
	if err = LoadWeights(dir, ModelScope, net2.Params); err != nil {
		t.Fatal(err)
	}
	for i, p := range net.Params {
		if !reflect.DeepEqual(p.Value.Data, net2.Params[i].Value.Data) {
			t.Error("parameter mismatch after load", p.Name)
		}
	}
	pred1, pred2 := net.Fprop(data.Images, 1).Copy(), net2.Fprop(data.Images, 1)
	if !reflect.DeepEqual(pred1.Data, pred2.Data) {
		t.Error("predictions differ after load:", pred1, pred2)
	}
	if err = LoadWeights(t.TempDir(), ModelScope, net2.Params); err == nil {
		t.Error("expected error loading from empty dir")
	}
}
