package nnet

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jnb666/deepres/num"
)

// 256 random images with batch size 128 gives exactly 2 optimizer steps per epoch.
func TestTrainResNet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full size network in short mode")
	}
	rng := rand.New(rand.NewSource(8))
	conf := DefaultConfig()
	conf.Augment = false
	conf.MaxEpoch = 1
	conf.SaveEvery = 1
	conf = ResNet(conf, conf.ResBlocks, conf.Classes)
	net, err := New(num.CPU(runtime.GOMAXPROCS(0)), conf, conf.ImageShape, rng)
	if err != nil {
		t.Fatal(err)
	}
	data := randomData(rng, 256, conf.ImageShape, 10)
	dir := t.TempDir()
	test, err := NewTestBase(conf, map[string]*Dataset{"test": data}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err = Train(context.Background(), net, data, test, nil); err != nil {
		t.Fatal(err)
	}
	if net.Steps() != 2 {
		t.Error("expected 2 steps, got", net.Steps())
	}
	if len(test.Stats) != 1 {
		t.Fatal("expected 1 epoch of stats, got", len(test.Stats))
	}
	s := test.Stats[0]
	t.Log(s)
	if math.IsNaN(s.Loss) || math.IsInf(s.Loss, 0) {
		t.Error("loss is not finite", s.Loss)
	}
	if s.Accuracy < 0 || s.Accuracy > 1 || !s.Evaluated || s.Eval < 0 || s.Eval > 1 {
		t.Error("accuracy out of range", s)
	}
	if _, err := os.Stat(filepath.Join(dir, "0", "cnn_conv0_conv.npy")); err != nil {
		t.Error("checkpoint not saved:", err)
	}
}

func TestTrain(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	conf := smallConfig()
	conf.MaxEpoch, conf.SaveEvery, conf.Shuffle = 4, 2, true
	conf.Eta, conf.EtaDecay, conf.EtaDecayEpochs = 0.1, 0.1, []int{2}
	net, err := New(dev, conf, []int{4, 4, 2}, rng)
	if err != nil {
		t.Fatal(err)
	}
	data := randomData(rng, 18, []int{4, 4, 2}, 3)
	dir := t.TempDir()
	test, err := NewTestBase(conf, map[string]*Dataset{"valid": randomData(rng, 8, []int{4, 4, 2}, 3), "test": data}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if test.Name != "valid" {
		t.Error("expected to evaluate on valid set, got", test.Name)
	}
	if err = Train(context.Background(), net, data, test, nil); err != nil {
		t.Fatal(err)
	}
	t.Log(test.Summary())
	if net.Steps() != 4*4 {
		t.Error("expected 16 steps, got", net.Steps())
	}
	for i, s := range test.Stats {
		if s.Evaluated != (s.Epoch%2 == 0) {
			t.Errorf("epoch %d: evaluated=%v", s.Epoch, s.Evaluated)
		}
		if expect := []float64{0.1, 0.1, 0.01, 0.01}[i]; math.Abs(s.Eta-expect) > 1e-12 {
			t.Errorf("epoch %d: eta %g expect %g", s.Epoch, s.Eta, expect)
		}
	}
	best := math.Max(test.Stats[1].Eval, test.Stats[3].Eval)
	if test.Best != best || test.Last != test.Stats[3].Eval {
		t.Error("best or last accuracy invalid:", test.Summary())
	}
	for _, name := range []string{"1", "3", "training.svg", "loss.svg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "0")); err == nil {
		t.Error("unexpected checkpoint for epoch 0")
	}
}

type flipAll struct{ calls int }

func (f *flipAll) TransformBatch(in, out *num.Array) *num.Array {
	f.calls++
	copy(out.Data, in.Data)
	num.Scale(-1, out)
	return out
}

func TestTrainEpoch(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	conf := smallConfig()
	net, err := New(dev, conf, []int{4, 4, 2}, rng)
	if err != nil {
		t.Fatal(err)
	}
	data := randomData(rng, 9, []int{4, 4, 2}, 3)
	orig := data.Images.Copy()
	aug := &flipAll{}
	loss, acc, err := TrainEpoch(context.Background(), net, data, 0.1, aug)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("loss=%.4f accuracy=%.4f", loss, acc)
	if aug.calls != 2 || net.Steps() != 2 {
		t.Error("expected 2 batches, got", aug.calls, net.Steps())
	}
	for i, v := range orig.Data {
		if data.Images.Data[i] != v {
			t.Fatal("augmentation should not modify the dataset")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err = TrainEpoch(ctx, net, data, 0.1, nil); err != context.Canceled {
		t.Error("expected cancelled error, got", err)
	}
	if net.Steps() != 2 {
		t.Error("no steps expected after cancel")
	}
	if err = Train(context.Background(), net, randomData(rng, 2, []int{4, 4, 2}, 3), nil, nil); err == nil {
		t.Error("expected error for dataset smaller than batch")
	}
}

func TestNewTestBase(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	conf := smallConfig()
	if _, err := NewTestBase(conf, map[string]*Dataset{"train": randomData(rng, 8, []int{4, 4, 2}, 3)}, ""); err == nil {
		t.Error("expected error with no evaluation set")
	}
	small := map[string]*Dataset{"test": randomData(rng, 3, []int{4, 4, 2}, 3)}
	if _, err := NewTestBase(conf, small, ""); err == nil {
		t.Error("expected error for eval set smaller than batch")
	} else {
		t.Log(err)
	}
	conf.TestBatch = 3
	test, err := NewTestBase(conf, small, "")
	if err != nil {
		t.Fatal(err)
	}
	if test.BatchSize != 3 || test.Name != "test" {
		t.Error("got batch size", test.BatchSize, "name", test.Name)
	}
}
