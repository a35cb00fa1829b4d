package nnet

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jnb666/deepres/num"
	"github.com/jnb666/deepres/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/plot/vg"
)

const emaN = 10

// Training statistics for one epoch. Epoch is 1 based.
type Stats struct {
	Epoch     int
	Eta       float64
	Loss      float64
	Accuracy  float64
	Eval      float64
	Evaluated bool
	Elapsed   time.Duration
}

func (s Stats) String() string {
	str := fmt.Sprintf("epoch %d: time=%s train accuracy=%.4f loss=%.4f", s.Epoch-1,
		s.Elapsed.Round(10*time.Millisecond), s.Accuracy, s.Loss)
	if s.Evaluated {
		str += fmt.Sprintf(" eval accuracy=%.4f", s.Eval)
	}
	return str
}

// Augmenter transforms a batch of training images, returning an array of the same shape.
type Augmenter interface {
	TransformBatch(in, out *num.Array) *num.Array
}

// Tester interface is called on completion of each epoch with the training stats.
type Tester interface {
	Test(net *Network, s *Stats) error
}

// TestBase evaluates the network every SaveEvery epochs and saves a checkpoint and training plots.
type TestBase struct {
	Name      string
	Data      *Dataset
	BatchSize int
	Dir       string
	Stats     []Stats
	Best      float64
	BestEpoch int
	Last      float64
	lossEMA   stats.EMA
	series    [4]stats.Series
}

// NewTestBase creates a tester using the valid dataset if present, else the test set.
// If dir is not empty checkpoints and plots are written there.
func NewTestBase(conf Config, data map[string]*Dataset, dir string) (*TestBase, error) {
	t := &TestBase{Dir: dir, BatchSize: conf.TestBatch, BestEpoch: -1}
	if t.BatchSize <= 0 {
		t.BatchSize = conf.TrainBatch
	}
	for _, key := range []string{"valid", "test"} {
		if d, ok := data[key]; ok {
			t.Name, t.Data = key, d
			break
		}
	}
	if t.Data == nil {
		return nil, errors.New("no valid or test data for evaluation")
	}
	if t.Data.Batches(t.BatchSize) == 0 {
		return nil, errors.Errorf("%s set of %d samples too small for batch size %d", t.Name, t.Data.Len(), t.BatchSize)
	}
	t.series = [4]stats.Series{{Name: "train loss"}, {Name: "smoothed loss"}, {Name: "train accuracy"}, {Name: t.Name + " accuracy"}}
	return t, nil
}

// Test records the stats, then every SaveEvery epochs evaluates the network and saves the weights
// to a directory named by the 0 based epoch.
func (t *TestBase) Test(net *Network, s *Stats) error {
	t.lossEMA = stats.EMA(t.lossEMA.Add(s.Loss, emaN))
	t.series[0].Add(float64(s.Epoch), s.Loss)
	t.series[1].Add(float64(s.Epoch), float64(t.lossEMA))
	t.series[2].Add(float64(s.Epoch), s.Accuracy)
	if net.SaveEvery > 0 && s.Epoch%net.SaveEvery == 0 {
		s.Eval = net.Evaluate(t.Data, t.BatchSize)
		s.Evaluated = true
		t.Last = s.Eval
		if t.BestEpoch < 0 || s.Eval > t.Best {
			t.Best, t.BestEpoch = s.Eval, s.Epoch
		}
		t.series[3].Add(float64(s.Epoch), s.Eval)
		fmt.Printf("epoch %d: %s accuracy=%.4f\n", s.Epoch-1, t.Name, s.Eval)
		if t.Dir != "" {
			if err := SaveWeights(EpochDir(t.Dir, s.Epoch-1), net.Params); err != nil {
				return errors.Wrap(err, "save checkpoint")
			}
			if err := t.SavePlots(); err != nil {
				return err
			}
		}
	}
	t.Stats = append(t.Stats, *s)
	return nil
}

// SavePlots writes the loss and accuracy curves to the model directory.
func (t *TestBase) SavePlots() error {
	w, h := 8*vg.Inch, 5*vg.Inch
	err := stats.SavePlot(filepath.Join(t.Dir, "training.svg"), "accuracy", "accuracy", w, h, t.series[2], t.series[3])
	if err != nil {
		return err
	}
	return stats.SavePlot(filepath.Join(t.Dir, "loss.svg"), "loss", "loss", w, h, t.series[0], t.series[1])
}

// Summary reports the best and last evaluation accuracy.
func (t *TestBase) Summary() string {
	if t.BestEpoch < 0 {
		return "no evaluation run"
	}
	return fmt.Sprintf("best %s accuracy = %.4f at epoch %d, last = %.4f", t.Name, t.Best, t.BestEpoch-1, t.Last)
}

// Train the network on the given training set by updating the weights for MaxEpoch epochs.
// aug may be nil if no augmentation is needed. Training stops with the context error if ctx
// is cancelled.
func Train(ctx context.Context, net *Network, data *Dataset, test Tester, aug Augmenter) error {
	if n := data.Batches(net.TrainBatch); n == 0 {
		return errors.Errorf("training set of %d samples too small for batch size %d", data.Len(), net.TrainBatch)
	}
	sched := NewSchedule(net.Config)
	for epoch := 0; epoch < net.MaxEpoch; epoch++ {
		start := time.Now()
		eta := sched.Rate(epoch)
		if sched.Decayed(epoch) {
			fmt.Printf("learning rate decayed to %.4f\n", eta)
		}
		loss, acc, err := TrainEpoch(ctx, net, data, eta, aug)
		if err != nil {
			return err
		}
		s := &Stats{Epoch: epoch + 1, Eta: eta, Loss: loss, Accuracy: acc, Elapsed: time.Since(start)}
		fmt.Println(s)
		if test != nil {
			if err = test.Test(net, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// TrainEpoch performs one pass over the training set with learning rate eta. It returns the mean
// of the batch loss and accuracy values.
func TrainEpoch(ctx context.Context, net *Network, data *Dataset, eta float64, aug Augmenter) (loss, acc float64, err error) {
	if net.Shuffle {
		data.Shuffle(net.rng)
	}
	var lossAvg, accAvg stats.Average
	var xbuf *num.Array
	for b := 0; b < data.Batches(net.TrainBatch); b++ {
		if err = ctx.Err(); err != nil {
			return lossAvg.Mean, accAvg.Mean, err
		}
		x, y := data.Batch(b, net.TrainBatch)
		if aug != nil {
			xbuf = num.Reuse(xbuf, x.Dims()...)
			x = aug.TransformBatch(x, xbuf)
		}
		batchLoss, batchAcc := net.Step(x, y, eta, net.KeepProb)
		lossAvg.Add(batchLoss)
		accAvg.Add(batchAcc)
	}
	return lossAvg.Mean, accAvg.Mean, nil
}
