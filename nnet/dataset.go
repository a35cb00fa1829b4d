package nnet

import (
	"fmt"
	"math/rand"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// DataTypes lists the dataset keys in the order they are reported.
var DataTypes = []string{"train", "train2", "valid", "test"}

// Dataset type encapsulates a set of training, test or validation data.
// Images has shape [N,H,W,C] and Labels is the one hot encoding with shape [N,classes].
type Dataset struct {
	Images *num.Array
	Labels *num.Array
	xSpare *num.Array
	ySpare *num.Array
}

// NewDataset checks that the image and label counts match.
func NewDataset(images, labels *num.Array) (*Dataset, error) {
	if len(images.Dims()) != 4 {
		return nil, errors.Errorf("images should have shape [N,H,W,C], got %v", images.Dims())
	}
	if len(labels.Dims()) != 2 {
		return nil, errors.Errorf("labels should have shape [N,classes], got %v", labels.Dims())
	}
	if images.Dims()[0] != labels.Dims()[0] {
		return nil, errors.Errorf("have %d images but %d labels", images.Dims()[0], labels.Dims()[0])
	}
	return &Dataset{Images: images, Labels: labels}, nil
}

// Len is the number of samples
func (d *Dataset) Len() int { return d.Images.Dims()[0] }

// Classes is the length of each one hot label.
func (d *Dataset) Classes() int { return d.Labels.Dims()[1] }

// Shape of one image
func (d *Dataset) Shape() []int { return d.Images.Dims()[1:] }

// Batches returns the number of full batches of the given size, the remainder is not used.
func (d *Dataset) Batches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return d.Len() / batchSize
}

// Batch returns views on the images and labels for batch i.
func (d *Dataset) Batch(i, batchSize int) (x, y *num.Array) {
	start, end := i*batchSize, (i+1)*batchSize
	return d.Images.Slice(start, end), d.Labels.Slice(start, end)
}

// Shuffle reorders the images and labels with the same random permutation.
func (d *Dataset) Shuffle(rng *rand.Rand) {
	perm := rng.Perm(d.Len())
	d.xSpare = num.Reuse(d.xSpare, d.Images.Dims()...)
	d.ySpare = num.Reuse(d.ySpare, d.Labels.Dims()...)
	for i, ix := range perm {
		copy(d.xSpare.Row(i), d.Images.Row(ix))
		copy(d.ySpare.Row(i), d.Labels.Row(ix))
	}
	d.Images, d.xSpare = d.xSpare, d.Images
	d.Labels, d.ySpare = d.ySpare, d.Labels
}

// ClassLabels returns the class index of each sample.
func (d *Dataset) ClassLabels() []int32 {
	return num.Unhot(d.Labels)
}

func (d *Dataset) String() string {
	return fmt.Sprintf("%d images %v, %d classes", d.Len(), d.Shape(), d.Classes())
}
